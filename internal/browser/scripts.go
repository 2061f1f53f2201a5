package browser

import (
	"encoding/json"
	"fmt"
)

// findAllScript stamps every match of a selector with a ref and reports its state.
const findAllScript = `(function(sel) {
	var seq = window.__aaSeq || 0;
	var out = [];
	document.querySelectorAll(sel).forEach(function(el) {
		var ref = el.getAttribute('data-aa-ref');
		if (!ref) {
			seq++;
			ref = String(seq);
			el.setAttribute('data-aa-ref', ref);
		}
		var attrs = {};
		for (var i = 0; i < el.attributes.length; i++) {
			attrs[el.attributes[i].name] = el.attributes[i].value;
		}
		var style = window.getComputedStyle(el);
		var rect = el.getBoundingClientRect();
		var visible = style.display !== 'none' && style.visibility !== 'hidden' &&
			(rect.width > 0 || rect.height > 0);
		out.push({
			ref: ref,
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.textContent || '').trim(),
			value: el.value === undefined || el.value === null ? '' : String(el.value),
			attrs: attrs,
			visible: visible,
			enabled: !el.disabled
		});
	});
	window.__aaSeq = seq;
	return out;
})(%s)`

// snapshotScript stamps form controls under the first existing root with refs,
// visibility and live values, then returns the root's HTML.
const snapshotScript = `(function(roots) {
	var root = null;
	for (var i = 0; i < roots.length && !root; i++) {
		root = document.querySelector(roots[i]);
	}
	if (!root) {
		return '';
	}
	var seq = window.__aaSeq || 0;
	var sel = 'input, textarea, select, fieldset, label, option, button, div[data-test-text-selectable-option], div[data-test-text-entity-list-form-component]';
	root.querySelectorAll(sel).forEach(function(el) {
		if (!el.getAttribute('data-aa-ref')) {
			seq++;
			el.setAttribute('data-aa-ref', String(seq));
		}
		var style = window.getComputedStyle(el);
		var rect = el.getBoundingClientRect();
		var visible = style.display !== 'none' && style.visibility !== 'hidden' &&
			(rect.width > 0 || rect.height > 0);
		el.setAttribute('data-aa-visible', visible ? 'true' : 'false');
		if (el.value !== undefined && el.value !== null && el.tagName !== 'OPTION' && el.tagName !== 'BUTTON') {
			el.setAttribute('data-aa-value', String(el.value));
		}
	});
	window.__aaSeq = seq;
	return root.outerHTML;
})(%s)`

// selectScript picks the option of a select element whose text matches.
const selectScript = `(function(sel, text) {
	var el = document.querySelector(sel);
	if (!el) {
		return 'stale';
	}
	var want = text.trim().toLowerCase();
	for (var i = 0; i < el.options.length; i++) {
		if (el.options[i].text.trim().toLowerCase() === want) {
			el.selectedIndex = i;
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return 'ok';
		}
	}
	return 'missing';
})(%s, %s)`

const existsScript = `document.querySelector(%s) !== null`

const scrollBottomScript = `window.scrollTo(0, document.body.scrollHeight); true`

// jsArgs renders values as JavaScript literals.
func jsArgs(script string, args ...any) string {
	lits := make([]any, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			b = []byte("null")
		}
		lits[i] = string(b)
	}
	return fmt.Sprintf(script, lits...)
}
