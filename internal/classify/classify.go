// Package classify groups the form controls of an application page into typed questions.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/platform"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// Fallback question texts used when a group carries no label.
const (
	GenericRadioQuestion    = "Choose the most appropriate option for this application"
	GenericDropdownQuestion = "Select the most appropriate option"
)

const (
	selectableOption = "[data-test-text-selectable-option]"
	entityList       = "div[data-test-text-entity-list-form-component]"
)

var skippedInputTypes = map[string]bool{
	"hidden":   true,
	"file":     true,
	"submit":   true,
	"button":   true,
	"radio":    true,
	"checkbox": true,
}

var placeholderOptions = map[string]bool{
	"select an option": true,
	"please select":    true,
}

// Field is one classified question together with the handles needed to answer it.
// Target is the control itself; Choices holds one clickable handle per option.
type Field struct {
	types.FieldDescriptor
	Target  browser.Element
	Choices []browser.Element
}

// Choice returns the handle for option i, or false when none exists.
func (f Field) Choice(i int) (browser.Element, bool) {
	if i < 0 || i >= len(f.Choices) {
		return browser.Element{}, false
	}
	return f.Choices[i], true
}

// VisibleFields snapshots the current form and classifies it.
func VisibleFields(ctx context.Context, session browser.Session) ([]Field, error) {
	html, err := session.Snapshot(ctx, platform.FormRoots...)
	if err != nil {
		return nil, err
	}
	return Classify(html)
}

// Classify parses a stamped form snapshot into fields in the order text, radio, dropdown, file.
func Classify(html string) ([]Field, error) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse form snapshot: %w", err)
	}

	var fields []Field
	fields = append(fields, textFields(doc)...)
	fields = append(fields, radioGroups(doc)...)
	fields = append(fields, dropdowns(doc)...)
	fields = append(fields, fileInputs(doc)...)
	return fields, nil
}

func textFields(doc *goquery.Document) []Field {
	var out []Field
	doc.Find("input, textarea").Each(func(_ int, s *goquery.Selection) {
		el := element(s)
		if !el.Visible || controlValue(s) != "" {
			return
		}
		if skippedInputTypes[strings.ToLower(el.Attr("type"))] {
			return
		}

		id := el.Attr("id")
		parts := []string{
			el.Attr("placeholder"),
			el.Attr("aria-label"),
			el.Attr("name"),
			labelFor(doc, s, id, true),
			id,
		}
		ident := strings.ToLower(strings.Join(nonEmpty(parts), " "))
		if ident == "" || ident == "null" || ident == "undefined" {
			return
		}
		out = append(out, Field{
			FieldDescriptor: types.FieldDescriptor{Kind: types.FieldText, Identifier: ident},
			Target:          el,
		})
	})
	return out
}

func radioGroups(doc *goquery.Document) []Field {
	var out []Field
	doc.Find("fieldset").Each(func(_ int, fs *goquery.Selection) {
		hasRadio := fs.Find("input[type='radio']").Length() > 0
		selectable := fs.Find(selectableOption)
		if !hasRadio && selectable.Length() == 0 {
			return
		}

		question := text(fs.Find("legend span").First())
		if question == "" {
			question = text(fs.Find("legend").First())
		}
		if question == "" {
			question = GenericRadioQuestion
		}

		var options []string
		var choices []browser.Element
		fs.Find("label").Each(func(_ int, l *goquery.Selection) {
			if t := text(l); t != "" {
				options = append(options, t)
				choices = append(choices, element(l))
			}
		})
		if len(options) == 0 && selectable.Length() > 0 {
			options = []string{"Yes", "No"}
			selectable.Each(func(_ int, d *goquery.Selection) {
				choices = append(choices, element(d))
			})
		}
		if len(options) == 0 {
			return
		}

		out = append(out, Field{
			FieldDescriptor: types.FieldDescriptor{Kind: types.FieldRadio, Identifier: question, Options: options},
			Target:          element(fs),
			Choices:         choices,
		})
	})
	return out
}

func dropdowns(doc *goquery.Document) []Field {
	var out []Field
	doc.Find("select").Each(func(_ int, s *goquery.Selection) {
		el := element(s)
		if !el.Visible {
			return
		}

		question := ""
		if container := s.Closest(entityList); container.Length() > 0 {
			question = text(container.Find("label").First())
		}
		if question == "" {
			question = labelFor(doc, s, el.Attr("id"), false)
		}
		if question == "" {
			question = GenericDropdownQuestion
		}

		var options []string
		var choices []browser.Element
		s.Find("option").Each(func(_ int, o *goquery.Selection) {
			t := text(o)
			if t == "" || placeholderOptions[strings.ToLower(t)] {
				return
			}
			options = append(options, t)
			choices = append(choices, element(o))
		})
		if len(options) == 0 {
			return
		}

		out = append(out, Field{
			FieldDescriptor: types.FieldDescriptor{Kind: types.FieldDropdown, Identifier: question, Options: options},
			Target:          el,
			Choices:         choices,
		})
	})
	return out
}

func fileInputs(doc *goquery.Document) []Field {
	var out []Field
	doc.Find("input[type='file']").Each(func(_ int, s *goquery.Selection) {
		el := element(s)
		if !el.Visible {
			return
		}
		ident := strings.ToLower(strings.Join(nonEmpty([]string{el.Attr("name"), el.Attr("id")}), " "))
		out = append(out, Field{
			FieldDescriptor: types.FieldDescriptor{Kind: types.FieldFile, Identifier: ident},
			Target:          el,
		})
	})
	return out
}

// element converts a stamped node into a handle.
func element(s *goquery.Selection) browser.Element {
	attrs := make(map[string]string)
	if len(s.Nodes) > 0 {
		for _, a := range s.Nodes[0].Attr {
			attrs[a.Key] = a.Val
		}
	}
	_, disabled := attrs["disabled"]
	return browser.Element{
		Ref:     attrs[browser.RefAttr],
		Tag:     goquery.NodeName(s),
		Text:    text(s),
		Value:   controlValue(s),
		Attrs:   attrs,
		Visible: attrs["data-aa-visible"] != "false",
		Enabled: !disabled,
	}
}

// controlValue prefers the live value recorded at snapshot time over the value attribute.
func controlValue(s *goquery.Selection) string {
	if v, ok := s.Attr("data-aa-value"); ok {
		return strings.TrimSpace(v)
	}
	if goquery.NodeName(s) == "textarea" {
		return strings.TrimSpace(s.Text())
	}
	v, _ := s.Attr("value")
	return strings.TrimSpace(v)
}

// labelFor finds the label bound to id, optionally falling back to the nearest preceding sibling label.
func labelFor(doc *goquery.Document, s *goquery.Selection, id string, sibling bool) string {
	if id != "" {
		if t := text(doc.Find(fmt.Sprintf("label[for=%q]", id)).First()); t != "" {
			return t
		}
	}
	if !sibling {
		return ""
	}
	return text(s.PrevAll().Filter("label").First())
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
