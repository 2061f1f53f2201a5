package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

// ErrNotFound is returned when the resume file does not exist.
var ErrNotFound = errors.New("resume not found")

// ObjectGetter is the subset of the S3 client used to download resumes.
type ObjectGetter interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// NewS3Client builds an S3 client for region using the default credential chain.
func NewS3Client(region string) (*s3.S3, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return s3.New(sess), nil
}

// Resume is a resume ready for upload, with its extracted corpus.
// Close removes any temporary copy.
type Resume struct {
	Path    string
	Corpus  types.ResumeCorpus
	cleanup func()
}

// Close releases the local copy of a downloaded resume.
func (r *Resume) Close() error {
	if r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
	return nil
}

// Loader resolves resume paths. Local paths are used in place; s3://bucket/key
// paths are downloaded to a temporary file first.
type Loader struct {
	s3  ObjectGetter
	log logrus.FieldLogger
}

// NewLoader returns a loader. s3 may be nil when only local paths are used.
func NewLoader(s3 ObjectGetter, log logrus.FieldLogger) *Loader {
	return &Loader{s3: s3, log: log}
}

// Load makes the resume at p available locally and extracts its text.
// A missing file yields ErrNotFound; an unreadable one yields the failed corpus.
func (l *Loader) Load(ctx context.Context, p string) (*Resume, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil, ErrNotFound
	}
	if strings.HasPrefix(p, "s3://") {
		return l.loadS3(ctx, p)
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to stat resume: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, p)
	}
	return &Resume{Path: p, Corpus: Corpus(p, l.log)}, nil
}

func (l *Loader) loadS3(ctx context.Context, p string) (*Resume, error) {
	if l.s3 == nil {
		return nil, fmt.Errorf("no S3 client configured for %s", p)
	}
	u, err := url.Parse(p)
	if err != nil || u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return nil, fmt.Errorf("invalid S3 resume path %q", p)
	}
	key := strings.TrimPrefix(u.Path, "/")

	out, err := l.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == s3.ErrCodeNoSuchBucket) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to download resume: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	// The extension is kept so both extraction and the upload field see the real format.
	tmp, err := os.CreateTemp("", "resume-*"+path.Ext(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, out.Body); err != nil {
		_ = tmp.Close()
		cleanup()
		return nil, fmt.Errorf("failed to download resume: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write resume: %w", err)
	}

	l.log.WithFields(logrus.Fields{"bucket": u.Host, "key": key}).Info("Downloaded resume from S3")
	return &Resume{Path: tmp.Name(), Corpus: Corpus(tmp.Name(), l.log), cleanup: cleanup}, nil
}
