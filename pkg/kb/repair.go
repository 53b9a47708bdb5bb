package kb

import (
	"context"

	"github.com/orneryd/mimirkb/pkg/entry"
)

// RepairResult reports a mirror-repair sweep.
type RepairResult struct {
	// Scanned is the number of entries visited.
	Scanned int `json:"scanned"`

	// MirrorsAdded counts the mirror relations the sweep created.
	MirrorsAdded int `json:"mirrors_added"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// IntegrityReport lists the consistency violations a check found without
// fixing anything.
type IntegrityReport struct {
	Scanned int `json:"scanned"`

	// Dangling lists relations whose target entry does not exist.
	Dangling []IntegrityIssue `json:"dangling,omitempty"`

	// MissingMirrors lists symmetric relations with no mirror on the
	// (existing) target.
	MissingMirrors []IntegrityIssue `json:"missing_mirrors,omitempty"`

	// Unreadable lists entries the scan could not decode.
	Unreadable []string `json:"unreadable,omitempty"`
}

// IntegrityIssue pinpoints one violating relation.
type IntegrityIssue struct {
	Source string     `json:"source"`
	Target string     `json:"target"`
	Kind   entry.Kind `json:"kind"`
}

// Clean reports whether the check found nothing to complain about.
func (r *IntegrityReport) Clean() bool {
	return len(r.Dangling) == 0 && len(r.MissingMirrors) == 0 && len(r.Unreadable) == 0
}

// RepairMirrors sweeps the whole store and re-creates every missing mirror
// for symmetric relations whose target exists.
//
// The sweep is idempotent: running it twice yields the same store state as
// running it once, because syncMirrors never duplicates an existing
// mirror. Dangling relations (target gone) are left alone — deleting them
// is Delete-cascade's job, and a repair pass must not guess whether a
// target is gone or merely unreadable right now.
func (k *KB) RepairMirrors(ctx context.Context) (*RepairResult, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	paths, err := k.store.ListAll()
	if err != nil {
		return nil, err
	}

	res := &RepairResult{}
	for _, p := range paths {
		res.Scanned++
		e, err := k.store.Read(p)
		if err != nil {
			res.Warnings = append(res.Warnings, warnf("mirror_repair", p, "reading: %v", err))
			continue
		}

		// Count what is actually missing before syncing, so the result
		// reflects work done rather than work attempted.
		var missing []entry.Relation
		for _, rel := range e.RelatedTo {
			if !entry.IsSymmetric(rel.Kind) {
				continue
			}
			target, err := k.store.Read(rel.Path)
			if err != nil {
				continue
			}
			if !target.HasRelation(p, rel.Kind) {
				missing = append(missing, rel)
			}
		}
		if len(missing) == 0 {
			continue
		}

		warnings := k.syncMirrors(p, missing)
		res.MirrorsAdded += len(missing) - len(warnings)
		res.Warnings = append(res.Warnings, warnings...)
	}
	return res, nil
}

// CheckIntegrity scans the store and reports every mirror-invariant and
// dangling-reference violation without modifying anything. Stale state is
// expected here: deletes and moves tolerate partial cleanup, and this
// check is how the damage gets surfaced for repair.
func (k *KB) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	paths, err := k.store.ListAll()
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{}
	for _, p := range paths {
		report.Scanned++
		e, err := k.store.Read(p)
		if err != nil {
			report.Unreadable = append(report.Unreadable, p)
			continue
		}
		for _, rel := range e.RelatedTo {
			if !k.store.Exists(rel.Path) {
				report.Dangling = append(report.Dangling, IntegrityIssue{
					Source: p, Target: rel.Path, Kind: rel.Kind,
				})
				continue
			}
			if !entry.IsSymmetric(rel.Kind) {
				continue
			}
			target, err := k.store.Read(rel.Path)
			if err != nil {
				continue
			}
			if !target.HasRelation(p, rel.Kind) {
				report.MissingMirrors = append(report.MissingMirrors, IntegrityIssue{
					Source: p, Target: rel.Path, Kind: rel.Kind,
				})
			}
		}
	}
	return report, nil
}
