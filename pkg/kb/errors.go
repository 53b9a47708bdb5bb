package kb

import (
	"errors"
	"fmt"
)

// Errors returned by engine operations.
//
// These abort an operation before any write occurs. Failures in
// best-effort side effects (mirror sync, reference rewriting) never become
// errors; they are reported as Warnings on the operation's result.
var (
	// ErrNotFound means the operation's primary target entry is absent.
	ErrNotFound = errors.New("entry not found")

	// ErrConflict means Create targeted a path that already holds an entry.
	ErrConflict = errors.New("entry already exists")

	// ErrClosed means the engine has been closed.
	ErrClosed = errors.New("knowledge base is closed")
)

// Warning reports one best-effort side effect that did not complete.
//
// A mutation that returns warnings still succeeded: the primary write (or
// delete) happened, but some secondary entry could not be brought in sync.
// Broken mirrors and stale references are repaired later by RepairMirrors
// / CheckIntegrity, never by failing the mutation that noticed them.
type Warning struct {
	// Op names the side effect that degraded: "mirror_sync",
	// "mirror_remove", "mirror_repair", "reference_rewrite",
	// "reference_strip", "reference_count", "source_delete".
	Op string `json:"op"`

	// Path is the secondary entry the side effect could not update.
	Path string `json:"path,omitempty"`

	// Message describes what went wrong.
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Op, w.Message)
	}
	return fmt.Sprintf("%s %s: %s", w.Op, w.Path, w.Message)
}

func warnf(op, path, format string, args ...any) Warning {
	return Warning{Op: op, Path: path, Message: fmt.Sprintf(format, args...)}
}
