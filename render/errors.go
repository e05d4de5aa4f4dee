package render

import (
	"errors"
	"fmt"
	"regexp"
	"text/template"
)

// ErrTemplateNotFound is wrapped by a KindTemplateNotFound error.
var ErrTemplateNotFound = errors.New("render: template not found")

// Kind classifies a rendering failure.
type Kind string

const (
	KindTemplate         Kind = "template"
	KindTemplateNotFound Kind = "template_not_found"
	KindUndefinedField   Kind = "undefined_field"
	KindInvalidDate      Kind = "invalid_date"
	KindNonSerializable  Kind = "non_serializable"
	KindSizeExceeded     Kind = "size_exceeded"
)

// Error is the tagged error returned by Render. Field is set for
// KindUndefinedField; Value carries the offending literal for
// KindInvalidDate and KindNonSerializable.
type Error struct {
	Kind     Kind
	Template string
	Field    string
	Value    string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUndefinedField:
		return fmt.Sprintf("render %s: field %q is undefined", e.Template, e.Field)
	case KindInvalidDate:
		return fmt.Sprintf("render %s: invalid date %q: %v", e.Template, e.Value, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("render %s: %s", e.Template, e.Kind)
	}
	return fmt.Sprintf("render %s: %v", e.Template, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" when err is not a render error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// DateError is raised by the date formatter for a value that is neither a
// time nor an ISO-8601 string.
type DateError struct {
	Value string
	Type  string
}

func (e *DateError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("invalid date type: %s, expected an ISO-8601 string or a time value", e.Type)
	}
	return fmt.Sprintf("invalid date format for value '%s', use ISO format (YYYY-MM-DD)", e.Value)
}

// text/template reports a missing map key only in prose.
var missingKeyRe = regexp.MustCompile(`map has no entry for key "([^"]+)"`)

// classify turns a template execution error into a tagged Error.
func classify(tmpl string, err error) *Error {
	var de *DateError
	if errors.As(err, &de) {
		return &Error{Kind: KindInvalidDate, Template: tmpl, Value: de.Value, Err: de}
	}
	var ee template.ExecError
	if errors.As(err, &ee) {
		if m := missingKeyRe.FindStringSubmatch(ee.Err.Error()); m != nil {
			return &Error{Kind: KindUndefinedField, Template: tmpl, Field: m[1], Err: err}
		}
	}
	if m := missingKeyRe.FindStringSubmatch(err.Error()); m != nil {
		return &Error{Kind: KindUndefinedField, Template: tmpl, Field: m[1], Err: err}
	}
	return &Error{Kind: KindTemplate, Template: tmpl, Err: err}
}
