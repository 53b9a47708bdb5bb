package kb

import (
	"github.com/orneryd/mimirkb/pkg/entry"
)

// Link synchronizer: keeps the mirror invariant for symmetric relation
// kinds. For every symmetric relation (A, kind, B) there should eventually
// exist (B, kind, A). "Eventually" is load-bearing — every function here is
// best-effort and idempotent. A target that cannot be read or written is
// reported as a warning and skipped; a broken mirror never aborts the
// primary mutation that triggered the sync.

// syncMirrors ensures a mirror relation exists on the target of every
// symmetric relation in rels. Running it twice produces no duplicates:
// targets that already hold the mirror are left untouched.
func (k *KB) syncMirrors(sourcePath string, rels []entry.Relation) []Warning {
	var warnings []Warning
	for _, rel := range rels {
		if !entry.IsSymmetric(rel.Kind) {
			continue
		}
		target, err := k.store.Read(rel.Path)
		if err != nil {
			warnings = append(warnings, warnf("mirror_sync", rel.Path,
				"reading target: %v", err))
			continue
		}
		if target.HasRelation(sourcePath, rel.Kind) {
			continue
		}
		target.RelatedTo = append(target.RelatedTo, entry.Relation{
			Path:        sourcePath,
			Kind:        rel.Kind,
			Description: rel.Description,
		})
		if err := k.store.Write(target.Path, target); err != nil {
			warnings = append(warnings, warnf("mirror_sync", rel.Path,
				"writing mirror: %v", err))
		}
	}
	return warnings
}

// removeMirrors is the dual of syncMirrors: for every symmetric relation
// being deleted from the source, drop the matching relation from the
// target's list. Same best-effort policy; a target that is already gone
// simply has no mirror to remove.
func (k *KB) removeMirrors(sourcePath string, rels []entry.Relation) []Warning {
	var warnings []Warning
	for _, rel := range rels {
		if !entry.IsSymmetric(rel.Kind) {
			continue
		}
		target, err := k.store.Read(rel.Path)
		if err != nil {
			warnings = append(warnings, warnf("mirror_remove", rel.Path,
				"reading target: %v", err))
			continue
		}

		kept := target.RelatedTo[:0]
		removed := false
		for _, tr := range target.RelatedTo {
			if tr.Path == sourcePath && tr.Kind == rel.Kind {
				removed = true
				continue
			}
			kept = append(kept, tr)
		}
		if !removed {
			continue
		}
		target.RelatedTo = kept
		if len(target.RelatedTo) == 0 {
			target.RelatedTo = nil
		}
		if err := k.store.Write(target.Path, target); err != nil {
			warnings = append(warnings, warnf("mirror_remove", rel.Path,
				"writing target: %v", err))
		}
	}
	return warnings
}

// diffRelations splits old vs new relation lists into removed and added,
// comparing by (path, kind) identity. Description-only changes are neither.
func diffRelations(oldRels, newRels []entry.Relation) (removed, added []entry.Relation) {
	type key struct {
		path string
		kind entry.Kind
	}
	oldSet := make(map[key]bool, len(oldRels))
	newSet := make(map[key]bool, len(newRels))
	for _, r := range oldRels {
		oldSet[key{r.Path, r.Kind}] = true
	}
	for _, r := range newRels {
		newSet[key{r.Path, r.Kind}] = true
	}
	for _, r := range oldRels {
		if !newSet[key{r.Path, r.Kind}] {
			removed = append(removed, r)
		}
	}
	for _, r := range newRels {
		if !oldSet[key{r.Path, r.Kind}] {
			added = append(added, r)
		}
	}
	return removed, added
}
