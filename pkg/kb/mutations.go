package kb

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/orneryd/mimirkb/pkg/entry"
	"github.com/orneryd/mimirkb/pkg/notify"
	"github.com/orneryd/mimirkb/pkg/store"
)

// CreateResult reports a successful Create.
type CreateResult struct {
	Entry    *entry.Entry `json:"entry"`
	Warnings []Warning    `json:"warnings,omitempty"`
}

// UpdateResult reports a successful Update. When the patch carried a
// TargetPath, Moved is true and Path holds the resolved destination.
type UpdateResult struct {
	Entry    *entry.Entry `json:"entry"`
	Path     string       `json:"path"`
	OldPath  string       `json:"old_path,omitempty"`
	Moved    bool         `json:"moved,omitempty"`
	Warnings []Warning    `json:"warnings,omitempty"`
}

// DeleteResult reports a successful Delete. Cleaned counts the entries the
// cascade cleanup actually modified; it is informational and never gates
// success.
type DeleteResult struct {
	Path    string `json:"path"`
	Cleaned int    `json:"cleaned"`

	// Entry is the document as it was just before deletion, when it could
	// still be read. Nil if the pre-delete read failed; the delete
	// proceeds regardless.
	Entry *entry.Entry `json:"entry,omitempty"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// MoveResult reports a successful Move. Path is the resolved destination,
// which differs from the requested one when a collision was disambiguated.
type MoveResult struct {
	OldPath      string    `json:"old_path"`
	Path         string    `json:"path"`
	Rewritten    int       `json:"rewritten"`
	IncomingRefs int       `json:"incoming_refs"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

// Create stores a new entry at path.
//
// Fails with ErrConflict if the path is taken and with
// *entry.ValidationError — carrying every violation, not just the first —
// if required fields are missing, the priority is unrecognized, or any
// relation targets a path with no entry behind it. Timestamps are stamped
// if absent. After the primary write, symmetric relations are mirrored
// onto their targets (best-effort, reported via Warnings) and collaborators
// are notified.
func (k *KB) Create(ctx context.Context, entryPath string, e *entry.Entry) (*CreateResult, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	started := time.Now()
	p, err := store.NormalizePath(entryPath)
	if err != nil {
		return nil, err
	}

	if k.store.Exists(p) {
		k.metrics.RecordOperation("create", "error")
		return nil, fmt.Errorf("%w: %s", ErrConflict, p)
	}

	verr := e.Validate()
	normalizeRelationPaths(e.RelatedTo, verr)
	k.validateRelationTargets(e.RelatedTo, verr)
	if err := verr.OrNil(); err != nil {
		k.metrics.RecordOperation("create", "error")
		return nil, err
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	if err := k.store.Write(p, e); err != nil {
		k.metrics.RecordOperation("create", "error")
		return nil, fmt.Errorf("writing %s: %w", p, err)
	}

	warnings := k.syncMirrors(p, e.RelatedTo)
	k.notifyMutation(notify.EventCreated, p, "")

	k.recordOutcome("create", started, warnings)
	return &CreateResult{Entry: e.Clone(), Warnings: warnings}, nil
}

// normalizeRelationPaths canonicalizes every relation's target path in
// place. Relations are stored in canonical form so that the mirror
// synchronizer and the store-wide scans can compare paths as plain
// strings; a relation persisted with a case- or separator-variant target
// would be invisible to them. Normalization failures become violations.
func normalizeRelationPaths(rels []entry.Relation, verr *entry.ValidationError) {
	for i, rel := range rels {
		if rel.Path == "" {
			continue // already reported by field validation
		}
		p, err := store.NormalizePath(rel.Path)
		if err != nil {
			verr.Add(fmt.Sprintf("related_to[%d].path", i), "invalid path %q", rel.Path)
			continue
		}
		rels[i].Path = p
	}
}

// validateRelationTargets appends a violation for every relation whose
// target path does not resolve to an existing entry. Paths must already
// be canonical (normalizeRelationPaths runs first).
func (k *KB) validateRelationTargets(rels []entry.Relation, verr *entry.ValidationError) {
	for i, rel := range rels {
		if rel.Path == "" {
			continue
		}
		if !k.store.Exists(rel.Path) {
			verr.Add(fmt.Sprintf("related_to[%d].path", i),
				"target entry %q does not exist", rel.Path)
		}
	}
}

// Patch describes a partial update. Nil fields are left untouched; only
// provided fields are validated and overwritten.
type Patch struct {
	Title    *string         `json:"title,omitempty"`
	Priority *entry.Priority `json:"priority,omitempty"`
	Category *string         `json:"category,omitempty"`
	Tags     *[]string       `json:"tags,omitempty"`
	Problem  *string         `json:"problem,omitempty"`
	Solution *string         `json:"solution,omitempty"`
	Context  *string         `json:"context,omitempty"`
	Examples *string         `json:"examples,omitempty"`
	Author   *string         `json:"author,omitempty"`
	Version  *string         `json:"version,omitempty"`

	// RelatedTo, when set, replaces the whole relation list. The engine
	// diffs old vs new and maintains mirrors for the symmetric kinds on
	// both sides of the diff.
	RelatedTo *[]entry.Relation `json:"related_to,omitempty"`

	// TargetPath, when set to a different path, relocates the entry: the
	// update delegates to Move for the patched copy.
	TargetPath string `json:"target_path,omitempty"`
}

// validate checks only the fields present in the patch, with the same
// rules Create applies.
func (p *Patch) validate() *entry.ValidationError {
	verr := &entry.ValidationError{}
	if p.Problem != nil && strings.TrimSpace(*p.Problem) == "" {
		verr.Add("problem", "must not be empty")
	}
	if p.Solution != nil && strings.TrimSpace(*p.Solution) == "" {
		verr.Add("solution", "must not be empty")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		verr.Add("priority", "unknown value %q (one of: %v)", *p.Priority, entry.KnownPriorities)
	}
	if p.RelatedTo != nil {
		for i, rel := range *p.RelatedTo {
			field := fmt.Sprintf("related_to[%d]", i)
			if rel.Path == "" {
				verr.Add(field+".path", "must not be empty")
			}
			if !rel.Kind.Valid() {
				verr.Add(field+".kind", "unknown relationship kind %q", rel.Kind)
			}
		}
	}
	return verr
}

// apply overwrites the provided fields on e and refreshes UpdatedAt.
func (p *Patch) apply(e *entry.Entry) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Priority != nil {
		e.Priority = *p.Priority
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Tags != nil {
		e.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Problem != nil {
		e.Problem = *p.Problem
	}
	if p.Solution != nil {
		e.Solution = *p.Solution
	}
	if p.Context != nil {
		e.Context = *p.Context
	}
	if p.Examples != nil {
		e.Examples = *p.Examples
	}
	if p.Author != nil {
		e.Author = *p.Author
	}
	if p.Version != nil {
		e.Version = *p.Version
	}
	if p.RelatedTo != nil {
		e.RelatedTo = append([]entry.Relation(nil), (*p.RelatedTo)...)
	}
	e.UpdatedAt = time.Now().UTC()
}

// Update applies a field-level patch to the entry at path.
//
// Fails with ErrNotFound if the entry is absent and with a
// *entry.ValidationError if any patched field breaks Create's rules —
// including relations in a replaced RelatedTo list whose targets do not
// exist. When the relation list is replaced, mirrors for removed symmetric
// relations are taken down before the write and mirrors for added ones are
// put up after it. When the patch carries a TargetPath, the write is
// delegated to the move machinery and the result reports the relocation.
func (k *KB) Update(ctx context.Context, entryPath string, patch *Patch) (*UpdateResult, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	started := time.Now()
	p, err := store.NormalizePath(entryPath)
	if err != nil {
		return nil, err
	}

	if !k.store.Exists(p) {
		k.metrics.RecordOperation("update", "error")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	current, err := k.store.Read(p)
	if err != nil {
		k.metrics.RecordOperation("update", "error")
		return nil, err
	}

	verr := patch.validate()
	var removed, added []entry.Relation
	if patch.RelatedTo != nil {
		// Canonicalize the replacement list before diffing, so a
		// case-variant of an existing relation is recognized as the same
		// edge and the stored list stays scannable.
		normalizeRelationPaths(*patch.RelatedTo, verr)
		removed, added = diffRelations(current.RelatedTo, *patch.RelatedTo)
		k.validateRelationTargets(added, verr)
	}
	if err := verr.OrNil(); err != nil {
		k.metrics.RecordOperation("update", "error")
		return nil, err
	}

	// Mirrors for removed symmetric relations come down before the new
	// list is applied, while the old list still names them.
	var warnings []Warning
	warnings = append(warnings, k.removeMirrors(p, removed)...)

	patched := current.Clone()
	patch.apply(patched)

	// A requested path change turns the rest of the update into a move of
	// the patched copy.
	if patch.TargetPath != "" {
		target, err := store.NormalizePath(patch.TargetPath)
		if err != nil {
			k.metrics.RecordOperation("update", "error")
			return nil, fmt.Errorf("target path: %w", err)
		}
		if target != p {
			moveRes, err := k.moveEntry(ctx, p, target, patched)
			if err != nil {
				k.metrics.RecordOperation("update", "error")
				return nil, err
			}
			warnings = append(warnings, moveRes.Warnings...)
			warnings = append(warnings, k.syncMirrors(moveRes.Path, added)...)

			k.recordOutcome("update", started, warnings)
			return &UpdateResult{
				Entry:    patched.Clone(),
				Path:     moveRes.Path,
				OldPath:  p,
				Moved:    true,
				Warnings: warnings,
			}, nil
		}
	}

	if err := k.store.Write(p, patched); err != nil {
		k.metrics.RecordOperation("update", "error")
		return nil, fmt.Errorf("writing %s: %w", p, err)
	}

	warnings = append(warnings, k.syncMirrors(p, added)...)
	k.notifyMutation(notify.EventUpdated, p, "")

	k.recordOutcome("update", started, warnings)
	return &UpdateResult{Entry: patched.Clone(), Path: p, Warnings: warnings}, nil
}

// Delete removes the entry at path.
//
// The store delete is the point of no return: once it succeeds the
// operation reports success no matter how the cascade cleanup fares. With
// cascade enabled (the default for callers that want graph hygiene), every
// other entry's relations targeting the deleted path are stripped; the
// count of entries touched is reported, and per-entry failures become
// warnings.
func (k *KB) Delete(ctx context.Context, entryPath string, cascade bool) (*DeleteResult, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	started := time.Now()
	p, err := store.NormalizePath(entryPath)
	if err != nil {
		return nil, err
	}

	if !k.store.Exists(p) {
		k.metrics.RecordOperation("delete", "error")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	// Best-effort read so the result can report what was removed;
	// deletion proceeds without it.
	removed, _ := k.store.Read(p)

	if err := k.store.Delete(p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			k.metrics.RecordOperation("delete", "error")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		k.metrics.RecordOperation("delete", "error")
		return nil, fmt.Errorf("deleting %s: %w", p, err)
	}

	res := &DeleteResult{Path: p, Entry: removed}
	if cascade {
		res.Cleaned, res.Warnings = k.stripReferences(p)
	}

	k.notifyMutation(notify.EventDeleted, p, "")
	k.recordOutcome("delete", started, res.Warnings)
	return res, nil
}

// Move relocates the entry at oldPath to newPath.
//
// A collision at newPath is not an error: a unique alternate is derived by
// appending a timestamp disambiguator to the filename component, bounded
// by the configured retry limit. Incoming references are counted up front
// and surfaced on the result; after the copy lands, every other entry's
// relations are retargeted. A rewrite that fails partway leaves the move
// successful with warnings.
func (k *KB) Move(ctx context.Context, oldPath, newPath string) (*MoveResult, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	started := time.Now()
	oldP, err := store.NormalizePath(oldPath)
	if err != nil {
		return nil, err
	}
	newP, err := store.NormalizePath(newPath)
	if err != nil {
		return nil, fmt.Errorf("target path: %w", err)
	}

	res, err := k.moveEntry(ctx, oldP, newP, nil)
	if err != nil {
		k.metrics.RecordOperation("move", "error")
		return nil, err
	}
	k.recordOutcome("move", started, res.Warnings)
	return res, nil
}

// moveEntry is the shared move machinery. When replacement is non-nil the
// relocated content is the already-patched copy from Update; otherwise the
// source entry is read from the store. Paths are pre-normalized.
func (k *KB) moveEntry(ctx context.Context, oldP, newP string, replacement *entry.Entry) (*MoveResult, error) {
	if !k.store.Exists(oldP) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, oldP)
	}

	// Moving onto the current path is a no-op, not a collision to
	// disambiguate away from.
	if newP == oldP {
		return &MoveResult{OldPath: oldP, Path: oldP}, nil
	}

	resolved, err := k.resolveCollision(newP)
	if err != nil {
		return nil, err
	}

	incoming, warnings := k.countIncomingReferences(oldP)

	e := replacement
	if e == nil {
		e, err = k.store.Read(oldP)
		if err != nil {
			return nil, err
		}
	}

	if err := k.store.Write(resolved, e); err != nil {
		return nil, fmt.Errorf("writing %s: %w", resolved, err)
	}

	rewritten, rewriteWarnings := k.rewriteReferences(oldP, resolved)
	warnings = append(warnings, rewriteWarnings...)

	// The entry now lives at both paths; failing to vacate the source is
	// degraded-but-successful, same as a partial rewrite.
	if err := k.store.Delete(oldP); err != nil && !errors.Is(err, store.ErrNotFound) {
		warnings = append(warnings, warnf("source_delete", oldP, "%v", err))
	}

	k.notifyMutation(notify.EventMoved, resolved, oldP)

	return &MoveResult{
		OldPath:      oldP,
		Path:         resolved,
		Rewritten:    rewritten,
		IncomingRefs: incoming,
		Warnings:     warnings,
	}, nil
}

// resolveCollision returns a path that is free to write to. If the
// requested path is taken, a monotonic disambiguator is appended to the
// filename component and the check repeats, bounded by the retry limit.
func (k *KB) resolveCollision(p string) (string, error) {
	if !k.store.Exists(p) {
		return p, nil
	}

	dir, name := path.Split(p)
	for attempt := 0; attempt < k.config.MoveRetryLimit; attempt++ {
		var stamp int64
		if attempt == 0 {
			stamp = time.Now().Unix()
		} else {
			stamp = time.Now().UnixNano()
		}
		candidate := fmt.Sprintf("%s%s-%d", dir, name, stamp)
		if !k.store.Exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: could not derive a free path for %s", ErrConflict, p)
}

// recordOutcome feeds the metrics collector after a successful operation.
func (k *KB) recordOutcome(op string, started time.Time, warnings []Warning) {
	status := "ok"
	if len(warnings) > 0 {
		status = "partial"
	}
	k.metrics.RecordOperation(op, status)
	k.metrics.RecordDuration(op, time.Since(started).Seconds())
	k.metrics.RecordSideEffectWarnings(op, len(warnings))
}
