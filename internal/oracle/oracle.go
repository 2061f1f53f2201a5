// Package oracle resolves application questions to answers grounded in resume text.
// Answer never fails: when the model is unavailable a safe default is returned.
package oracle

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/llm"
	"github.com/jonathan/easy-apply-agent/internal/prompts"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// NotAvailable is the answer for text questions the resume cannot ground.
const NotAvailable = "N/A"

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 30 * time.Second

var numericQuestion = regexp.MustCompile(`(?i)experience|years?|salary|\bage\b|notice|compensation|\bctc\b|how many|how much`)

// Generator is the subset of llm.Client the oracle needs.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

// Oracle answers form questions.
type Oracle struct {
	gen     Generator
	tier    llm.ModelTier
	timeout time.Duration
	log     logrus.FieldLogger
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithTier selects the model tier used for answers.
func WithTier(tier llm.ModelTier) Option {
	return func(o *Oracle) { o.tier = tier }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) { o.timeout = d }
}

// New returns an oracle backed by gen. A nil gen makes every answer a fallback.
func New(gen Generator, log logrus.FieldLogger, opts ...Option) *Oracle {
	o := &Oracle{
		gen:     gen,
		tier:    llm.TierLite,
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SystemInstruction is the standing instruction the answer model is configured with.
func SystemInstruction() (string, error) {
	return prompts.Get(prompts.Oracle, prompts.System)
}

// Answer returns a non-empty answer for question. When options are given the
// model is asked to pick one, and may pick an arbitrary one if the resume has no match.
func (o *Oracle) Answer(ctx context.Context, question string, options []string, corpus types.ResumeCorpus) string {
	if corpus.Failed() {
		return Default(question, options)
	}
	if o.gen == nil {
		return Fallback(options)
	}

	prompt, err := prompts.Render(prompts.Oracle, prompts.AnswerQuestion, map[string]string{
		"Resume":   string(corpus),
		"Question": question,
		"Options":  formatOptions(options),
	})
	if err != nil {
		o.log.WithError(err).Warn("Oracle prompt unavailable, using fallback answer")
		return Fallback(options)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out, err := o.gen.GenerateContent(callCtx, prompt, o.tier)
	if err != nil {
		o.log.WithError(err).WithField("question", question).Warn("Oracle call failed, using fallback answer")
		return Fallback(options)
	}

	answer := llm.CleanAnswer(out)
	if answer == "" {
		o.log.WithField("question", question).Warn("Oracle returned an empty answer, using fallback answer")
		return Fallback(options)
	}
	o.log.WithFields(logrus.Fields{"question": question, "answer": answer}).Debug("Oracle answered")
	return answer
}

// Fallback is the answer used when the model cannot be consulted.
func Fallback(options []string) string {
	if len(options) > 0 && strings.TrimSpace(options[0]) != "" {
		return options[0]
	}
	return NotAvailable
}

// Default is the answer used when there is no resume text to ground on.
func Default(question string, options []string) string {
	if len(options) > 0 && strings.TrimSpace(options[0]) != "" {
		return options[0]
	}
	if IsNumeric(question) {
		return "0"
	}
	return NotAvailable
}

// IsNumeric reports whether a question asks for a number.
func IsNumeric(question string) bool {
	return numericQuestion.MatchString(question)
}

func formatOptions(options []string) string {
	if len(options) == 0 {
		return "None"
	}
	var sb strings.Builder
	for i, opt := range options {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(opt)
	}
	return sb.String()
}
