package resume

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"line endings", "a\r\nb\rc", "a\nb\nc"},
		{"interior spaces", "Go    and\tSQL", "Go and SQL"},
		{"blank runs", "one\n\n\n\n\ntwo", "one\n\ntwo"},
		{"bullets", "• Led migration\n·  Cut costs", "- Led migration\n- Cut costs"},
		{"trim", "   \n  Jane Doe  \n ", "Jane Doe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	p := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(p, []byte("Jane Doe\n\n\n\nSix years   of Go"), 0o600))

	text, err := Extract(p)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\n\nSix years of Go", text)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract("/tmp/resume.odt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCorpus_FailureSentinel(t *testing.T) {
	logger, hook := test.NewNullLogger()

	c := Corpus(filepath.Join(t.TempDir(), "missing.pdf"), logger)
	assert.True(t, c.Failed())
	assert.Equal(t, types.ResumeCorpus(types.ExtractionFailed), c)
	assert.NotEmpty(t, hook.Entries)

	c = Corpus("/tmp/resume.rtf", logger)
	assert.True(t, c.Failed())
	assert.Contains(t, string(c), "PLEASE UPLOAD PDF")
}

func TestLoader_Local(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()
	p := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(p, []byte("# Jane\n- Go"), 0o600))
	l := NewLoader(nil, logger)

	r, err := l.Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p, r.Path)
	assert.Equal(t, types.ResumeCorpus("# Jane\n- Go"), r.Corpus)
	require.NoError(t, r.Close())
	assert.FileExists(t, p, "local resumes are never removed")

	_, err = l.Load(context.Background(), filepath.Join(dir, "nope.pdf"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeS3 struct {
	objects map[string]string
	input   *s3.GetObjectInput
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.input = in
	body, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "not found", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoader_S3(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &fakeS3{objects: map[string]string{"resumes/u1/resume.txt": "Jane Doe\nGo engineer"}}
	l := NewLoader(store, logger)

	r, err := l.Load(context.Background(), "s3://resumes/u1/resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "resumes", aws.StringValue(store.input.Bucket))
	assert.Equal(t, "u1/resume.txt", aws.StringValue(store.input.Key))
	assert.Equal(t, ".txt", filepath.Ext(r.Path))
	assert.Equal(t, types.ResumeCorpus("Jane Doe\nGo engineer"), r.Corpus)

	require.NoError(t, r.Close())
	_, statErr := os.Stat(r.Path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "downloaded copy is removed on close")

	_, err = l.Load(context.Background(), "s3://resumes/u2/resume.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), "s3://resumes")
	assert.Error(t, err)

	_, err = NewLoader(nil, logger).Load(context.Background(), "s3://resumes/u1/resume.txt")
	assert.Error(t, err)
}
