// Package prompts holds the prompt templates sent to the answer model.
// Templates live in embedded JSON files keyed by name and use {{.Name}}
// placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

// File names an embedded prompt file.
type File string

// Key names a template inside a prompt file.
type Key string

const (
	// Oracle holds the question answering prompts.
	Oracle File = "oracle.json"

	// System is the standing instruction given to the model.
	System Key = "system"
	// AnswerQuestion asks for one answer grounded in resume text.
	// Placeholders: Resume, Question, Options.
	AnswerQuestion Key = "answer-question"
)

// parsed caches each file after its first read.
var parsed sync.Map

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// Get returns the raw template stored under key.
func Get(file File, key Key) (string, error) {
	templates, err := load(file)
	if err != nil {
		return "", err
	}
	t, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return t, nil
}

// Render fills every placeholder of the template from data. A placeholder
// without a value is an error, so a prompt is never sent half-filled.
func Render(file File, key Key, data map[string]string) (string, error) {
	t, err := Get(file, key)
	if err != nil {
		return "", err
	}
	out, missing := fill(t, data)
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s in %s has no value for %s", key, file, strings.Join(missing, ", "))
	}
	return out, nil
}

func fill(template string, data map[string]string) (string, []string) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := data[name]
		if !ok {
			for _, n := range missing {
				if n == name {
					return ""
				}
			}
			missing = append(missing, name)
		}
		return v
	})
	return out, missing
}

func load(file File) (map[Key]string, error) {
	if v, ok := parsed.Load(file); ok {
		return v.(map[Key]string), nil
	}

	data, err := files.ReadFile(string(file))
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	var templates map[Key]string
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}

	v, _ := parsed.LoadOrStore(file, templates)
	return v.(map[Key]string), nil
}
