// Package resume locates the candidate's resume and extracts the plain-text
// corpus that grounds generated answers.
package resume

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"baliance.com/gooxml/document"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

// ErrUnsupportedFormat is returned for resume files with no text extractor.
var ErrUnsupportedFormat = errors.New("unsupported resume format")

// Extract returns the cleaned text of the resume at path. PDF, DOCX and
// plain-text files are supported.
func Extract(path string) (string, error) {
	var (
		raw string
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		raw, err = extractPDF(path)
	case ".docx":
		raw, err = extractDOCX(path)
	case ".txt", ".md":
		var b []byte
		b, err = os.ReadFile(path)
		raw = string(b)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return "", err
	}
	text := CleanText(raw)
	if text == "" {
		return "", fmt.Errorf("no text found in %s", filepath.Base(path))
	}
	return text, nil
}

// Corpus extracts the resume text, returning the extraction-failed sentinel on any error.
func Corpus(path string, log logrus.FieldLogger) types.ResumeCorpus {
	text, err := Extract(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("Error extracting resume text")
		if errors.Is(err, ErrUnsupportedFormat) {
			return types.ResumeCorpus(types.ExtractionFailed + " - PLEASE UPLOAD PDF")
		}
		return types.ResumeCorpus(types.ExtractionFailed)
	}
	return types.ResumeCorpus(text)
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(b), nil
}

func extractDOCX(path string) (string, error) {
	doc, err := document.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	var sb strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			sb.WriteString(r.Text())
		}
		sb.WriteString("\n")
	}
	for _, t := range doc.Tables() {
		for _, row := range t.Rows() {
			for _, cell := range row.Cells() {
				for _, p := range cell.Paragraphs() {
					for _, r := range p.Runs() {
						sb.WriteString(r.Text())
					}
					sb.WriteString(" ")
				}
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
