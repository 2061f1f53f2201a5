package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/easy-apply-agent/internal/llm"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

type fakeGenerator struct {
	out     string
	err     error
	calls   int
	prompts []string
	block   bool
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

const resume = types.ResumeCorpus("Jane Doe. Go engineer with 6 years of experience.")

func newOracle(gen Generator) *Oracle {
	logger, _ := test.NewNullLogger()
	return New(gen, logger)
}

func TestAnswer_ReturnsCleanedModelOutput(t *testing.T) {
	gen := &fakeGenerator{out: "  \"6\"  "}
	o := newOracle(gen)

	got := o.Answer(context.Background(), "Years of Go experience?", nil, resume)
	assert.Equal(t, "6", got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], string(resume))
	assert.Contains(t, gen.prompts[0], "Years of Go experience?")
	assert.Contains(t, gen.prompts[0], "None")
}

func TestAnswer_IncludesOptionsInPrompt(t *testing.T) {
	gen := &fakeGenerator{out: "No"}
	o := newOracle(gen)

	got := o.Answer(context.Background(), "Need sponsorship?", []string{"Yes", "No"}, resume)
	assert.Equal(t, "No", got)
	assert.Contains(t, gen.prompts[0], "- Yes\n- No")
}

func TestAnswer_FailureFallsBackToFirstOption(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	o := newOracle(gen)

	assert.Equal(t, "Yes", o.Answer(context.Background(), "Authorized?", []string{"Yes", "No"}, resume))
	assert.Equal(t, NotAvailable, o.Answer(context.Background(), "Website?", nil, resume))
}

func TestAnswer_EmptyOutputFallsBack(t *testing.T) {
	o := newOracle(&fakeGenerator{out: "```\n\n```"})
	assert.Equal(t, NotAvailable, o.Answer(context.Background(), "Website?", nil, resume))
}

func TestAnswer_TimeoutFallsBack(t *testing.T) {
	logger, _ := test.NewNullLogger()
	o := New(&fakeGenerator{block: true}, logger, WithTimeout(10*time.Millisecond))

	assert.Equal(t, "Remote", o.Answer(context.Background(), "Work mode", []string{"Remote", "Onsite"}, resume))
}

func TestAnswer_NilGenerator(t *testing.T) {
	o := newOracle(nil)
	assert.Equal(t, NotAvailable, o.Answer(context.Background(), "Portfolio URL", nil, resume))
}

func TestAnswer_FailedCorpusSkipsModel(t *testing.T) {
	gen := &fakeGenerator{out: "should not be used"}
	o := newOracle(gen)
	failed := types.ResumeCorpus(types.ExtractionFailed)

	numeric := []string{
		"How many years of experience do you have with Go?",
		"Expected salary",
		"What is your age?",
		"Notice period (days)",
	}
	for _, q := range numeric {
		assert.Equal(t, "0", o.Answer(context.Background(), q, nil, failed), q)
	}

	text := []string{"LinkedIn profile URL", "Why do you want to join?", "Which page brought you here?"}
	for _, q := range text {
		assert.Equal(t, NotAvailable, o.Answer(context.Background(), q, nil, failed), q)
	}

	assert.Equal(t, "Yes", o.Answer(context.Background(), "Years?", []string{"Yes", "No"}, failed))
	assert.Zero(t, gen.calls)
}

func TestAnswer_NeverEmpty(t *testing.T) {
	gens := []Generator{
		nil,
		&fakeGenerator{err: errors.New("boom")},
		&fakeGenerator{out: ""},
		&fakeGenerator{out: "ok"},
	}
	corpora := []types.ResumeCorpus{"", types.ExtractionFailed, resume}
	optionSets := [][]string{nil, {}, {""}, {"Yes", "No"}}

	for _, g := range gens {
		o := newOracle(g)
		for _, c := range corpora {
			for _, opts := range optionSets {
				assert.NotEmpty(t, o.Answer(context.Background(), "Question", opts, c))
			}
		}
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("Years of experience"))
	assert.True(t, IsNumeric("Current CTC"))
	assert.False(t, IsNumeric("Which page brought you here?"))
	assert.False(t, IsNumeric("Your message"))
}

func TestSystemInstruction(t *testing.T) {
	sys, err := SystemInstruction()
	require.NoError(t, err)
	assert.Equal(t, "You are a CV analysis expert. Answer accurately and concisely.", sys)
}
