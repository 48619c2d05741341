package upload

import (
	"fmt"
	"sort"
	"strings"
)

// FieldErrors collects every validation problem found in a request, keyed by
// field name (file entries use the form "images[N]"). It satisfies
// httputil.FieldError so handlers render it as a 400 with per-field messages.
type FieldErrors struct {
	fields map[string]string
}

// NewFieldErrors creates an empty error collection.
func NewFieldErrors() *FieldErrors {
	return &FieldErrors{fields: make(map[string]string)}
}

// Add records a message for the given field. The first message per field wins,
// so parse errors are not overwritten by follow-up constraint checks.
func (e *FieldErrors) Add(field, message string) {
	if _, exists := e.fields[field]; !exists {
		e.fields[field] = message
	}
}

// Merge copies messages from m without overwriting existing entries.
func (e *FieldErrors) Merge(m map[string]string) {
	for field, message := range m {
		e.Add(field, message)
	}
}

// Empty reports whether no errors were collected.
func (e *FieldErrors) Empty() bool {
	return len(e.fields) == 0
}

// Fields returns the collected field → message map.
func (e *FieldErrors) Fields() map[string]string {
	return e.fields
}

func (e *FieldErrors) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.fields[k]))
	}
	return strings.Join(msgs, "; ")
}
