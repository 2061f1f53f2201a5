package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/easy-apply-agent/internal/browser/browsertest"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

const modal = `<div class="jobs-easy-apply-modal">
  <div>
    <label for="phone" data-aa-ref="1" data-aa-visible="true">Mobile phone number</label>
    <input id="phone" name="phoneNumber" type="text" data-aa-ref="2" data-aa-visible="true" data-aa-value="">
  </div>
  <input id="email" type="text" data-aa-ref="3" data-aa-visible="true" data-aa-value="me@example.com">
  <input id="secret" type="text" data-aa-ref="4" data-aa-visible="false" data-aa-value="">
  <input id="h" type="hidden" data-aa-ref="5" data-aa-visible="true" data-aa-value="">
  <input type="submit" data-aa-ref="6" data-aa-visible="true">
  <textarea placeholder="Cover letter" data-aa-ref="7" data-aa-visible="true" data-aa-value=""></textarea>
  <input type="text" data-aa-ref="8" data-aa-visible="true" data-aa-value="">

  <fieldset data-aa-ref="10" data-aa-visible="true">
    <legend><span>Are you authorized to work?</span></legend>
    <input type="radio" id="r1" data-aa-ref="11" data-aa-visible="false">
    <label for="r1" data-aa-ref="12" data-aa-visible="true">Yes</label>
    <input type="radio" id="r2" data-aa-ref="13" data-aa-visible="false">
    <label for="r2" data-aa-ref="14" data-aa-visible="true">No</label>
  </fieldset>

  <fieldset data-aa-ref="20" data-aa-visible="true">
    <div data-test-text-selectable-option="0" data-aa-ref="21" data-aa-visible="true"></div>
    <div data-test-text-selectable-option="1" data-aa-ref="22" data-aa-visible="true"></div>
  </fieldset>

  <fieldset data-aa-ref="30" data-aa-visible="true">
    <input type="radio" data-aa-ref="31" data-aa-visible="true">
  </fieldset>

  <div data-test-text-entity-list-form-component>
    <label data-aa-ref="40" data-aa-visible="true">Years of Go experience</label>
    <select id="years" data-aa-ref="41" data-aa-visible="true">
      <option data-aa-ref="42">Select an option</option>
      <option data-aa-ref="43">0-2</option>
      <option data-aa-ref="44">3-5</option>
    </select>
  </div>
  <label for="lang" data-aa-ref="50" data-aa-visible="true">Proficiency</label>
  <select id="lang" data-aa-ref="51" data-aa-visible="true">
    <option data-aa-ref="52">Please select</option>
    <option data-aa-ref="53">Native</option>
  </select>
  <select id="empty" data-aa-ref="55" data-aa-visible="true">
    <option data-aa-ref="56">Select an option</option>
  </select>
  <select data-aa-ref="57" data-aa-visible="true">
    <option data-aa-ref="58">A</option>
  </select>

  <input type="file" name="resume" data-aa-ref="60" data-aa-visible="true">
  <input type="file" name="hidden-upload" data-aa-ref="61" data-aa-visible="false">
</div>`

func byKind(fields []Field, kind types.FieldKind) []Field {
	var out []Field
	for _, f := range fields {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestClassify_TextFields(t *testing.T) {
	fields, err := Classify(modal)
	require.NoError(t, err)

	text := byKind(fields, types.FieldText)
	require.Len(t, text, 2)

	assert.Equal(t, "phonenumber mobile phone number phone", text[0].Identifier)
	assert.Equal(t, "2", text[0].Target.Ref)
	assert.Empty(t, text[0].Options)

	assert.Equal(t, "cover letter", text[1].Identifier)
	assert.Equal(t, "7", text[1].Target.Ref)
}

func TestClassify_RadioGroups(t *testing.T) {
	fields, err := Classify(modal)
	require.NoError(t, err)

	radios := byKind(fields, types.FieldRadio)
	require.Len(t, radios, 2, "group without options is skipped")

	assert.Equal(t, "Are you authorized to work?", radios[0].Identifier)
	assert.Equal(t, []string{"Yes", "No"}, radios[0].Options)
	c, ok := radios[0].Choice(1)
	require.True(t, ok)
	assert.Equal(t, "14", c.Ref)

	assert.Equal(t, GenericRadioQuestion, radios[1].Identifier)
	assert.Equal(t, []string{"Yes", "No"}, radios[1].Options)
	assert.Len(t, radios[1].Choices, 2)
}

func TestClassify_Dropdowns(t *testing.T) {
	fields, err := Classify(modal)
	require.NoError(t, err)

	drops := byKind(fields, types.FieldDropdown)
	require.Len(t, drops, 3)

	assert.Equal(t, "Years of Go experience", drops[0].Identifier)
	assert.Equal(t, []string{"0-2", "3-5"}, drops[0].Options)
	assert.Equal(t, "41", drops[0].Target.Ref)

	assert.Equal(t, "Proficiency", drops[1].Identifier)
	assert.Equal(t, []string{"Native"}, drops[1].Options)

	assert.Equal(t, GenericDropdownQuestion, drops[2].Identifier)
}

func TestClassify_FileInputs(t *testing.T) {
	fields, err := Classify(modal)
	require.NoError(t, err)

	files := byKind(fields, types.FieldFile)
	require.Len(t, files, 1)
	assert.Equal(t, "60", files[0].Target.Ref)
}

func TestClassify_EmptySnapshot(t *testing.T) {
	fields, err := Classify("   ")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestVisibleFields_UsesSnapshot(t *testing.T) {
	fake := browsertest.New()
	fake.SetSnapshots(`<div><input id="city" type="text" data-aa-ref="9" data-aa-visible="true"></div>`)

	fields, err := VisibleFields(context.Background(), fake)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "city", fields[0].Identifier)
}

func TestMatchOption(t *testing.T) {
	opts := []string{"Yes", "No", "Not sure"}
	tests := []struct {
		answer string
		want   int
	}{
		{"yes", 0},
		{"NO", 1},
		{"sure", 2},
		{"maybe", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchOption(opts, tt.answer))
		})
	}
	assert.True(t, Matched(opts, "sure"))
	assert.False(t, Matched(opts, "maybe"))
}
