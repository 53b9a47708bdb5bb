package entry

import (
	"fmt"
	"strings"
)

// Violation describes a single validation failure on an entry field.
type Violation struct {
	// Field is the entry field the violation concerns, e.g. "priority"
	// or "related_to[2].path".
	Field string `json:"field"`

	// Message is a human-readable description of the problem.
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError aggregates every violation found on an entry.
//
// Validation always collects all problems rather than stopping at the
// first, so callers see the complete list in one round trip.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Add appends a violation to the error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Merge appends all violations from other, if any.
func (e *ValidationError) Merge(other *ValidationError) {
	if other != nil {
		e.Violations = append(e.Violations, other.Violations...)
	}
}

// Empty reports whether no violations were collected.
func (e *ValidationError) Empty() bool {
	return len(e.Violations) == 0
}

// OrNil returns the error itself when violations exist, nil otherwise.
// Returning a plain nil avoids the classic non-nil interface wrapping a
// nil pointer.
func (e *ValidationError) OrNil() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

// Validate checks the entry's field-level rules and returns every
// violation found.
//
// Checked here: required non-empty Problem and Solution, a recognized
// Priority, and well-formed relations (non-empty target path, known kind).
// Dangling-reference checks need store access and live in the engine; they
// are merged into the same ValidationError there.
func (e *Entry) Validate() *ValidationError {
	verr := &ValidationError{}

	if strings.TrimSpace(e.Problem) == "" {
		verr.Add("problem", "must not be empty")
	}
	if strings.TrimSpace(e.Solution) == "" {
		verr.Add("solution", "must not be empty")
	}
	if e.Priority == "" {
		verr.Add("priority", "must not be empty")
	} else if !e.Priority.Valid() {
		verr.Add("priority", "unknown value %q (one of: %v)", e.Priority, KnownPriorities)
	}

	for i, rel := range e.RelatedTo {
		field := fmt.Sprintf("related_to[%d]", i)
		if strings.TrimSpace(rel.Path) == "" {
			verr.Add(field+".path", "must not be empty")
		}
		if !rel.Kind.Valid() {
			verr.Add(field+".kind", "unknown relationship kind %q", rel.Kind)
		}
	}

	return verr
}
