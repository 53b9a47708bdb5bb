package kb

// Reference rewriter: full-store scan that finds every entry whose
// relations target a given path and rewrites or removes those relations.
// Move uses rewrite mode, Delete uses strip mode.
//
// The scan is O(n) over the whole store: there is no incoming-reference
// index, and scan order is unspecified. Per-entry read/parse/
// write failures are caught, reported as warnings, and skipped; the
// rewriter always continues to the next candidate and reports how many
// entries it actually modified.

// rewriteReferences retargets every relation pointing at oldPath to
// newPath. The entries at oldPath and newPath themselves are excluded from
// the scan. Returns the count of entries successfully modified.
func (k *KB) rewriteReferences(oldPath, newPath string) (int, []Warning) {
	paths, err := k.store.ListAll()
	if err != nil {
		return 0, []Warning{warnf("reference_rewrite", "", "listing store: %v", err)}
	}

	var warnings []Warning
	modified := 0
	for _, p := range paths {
		if p == oldPath || p == newPath {
			continue
		}
		e, err := k.store.Read(p)
		if err != nil {
			warnings = append(warnings, warnf("reference_rewrite", p, "reading: %v", err))
			continue
		}
		changed := false
		for i := range e.RelatedTo {
			if e.RelatedTo[i].Path == oldPath {
				e.RelatedTo[i].Path = newPath
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := k.store.Write(p, e); err != nil {
			warnings = append(warnings, warnf("reference_rewrite", p, "writing: %v", err))
			continue
		}
		modified++
	}
	return modified, warnings
}

// stripReferences removes every relation targeting deadPath from every
// other entry. Returns the count of entries successfully modified.
func (k *KB) stripReferences(deadPath string) (int, []Warning) {
	paths, err := k.store.ListAll()
	if err != nil {
		return 0, []Warning{warnf("reference_strip", "", "listing store: %v", err)}
	}

	var warnings []Warning
	modified := 0
	for _, p := range paths {
		if p == deadPath {
			continue
		}
		e, err := k.store.Read(p)
		if err != nil {
			warnings = append(warnings, warnf("reference_strip", p, "reading: %v", err))
			continue
		}

		kept := e.RelatedTo[:0]
		for _, rel := range e.RelatedTo {
			if rel.Path != deadPath {
				kept = append(kept, rel)
			}
		}
		if len(kept) == len(e.RelatedTo) {
			continue
		}
		e.RelatedTo = kept
		if len(e.RelatedTo) == 0 {
			e.RelatedTo = nil
		}
		if err := k.store.Write(p, e); err != nil {
			warnings = append(warnings, warnf("reference_strip", p, "writing: %v", err))
			continue
		}
		modified++
	}
	return modified, warnings
}

// countIncomingReferences counts how many entries hold at least one
// relation targeting path. Used by Move to surface a non-fatal heads-up
// about how much rewiring the move implies.
func (k *KB) countIncomingReferences(path string) (int, []Warning) {
	paths, err := k.store.ListAll()
	if err != nil {
		return 0, []Warning{warnf("reference_count", "", "listing store: %v", err)}
	}

	var warnings []Warning
	count := 0
	for _, p := range paths {
		if p == path {
			continue
		}
		e, err := k.store.Read(p)
		if err != nil {
			warnings = append(warnings, warnf("reference_count", p, "reading: %v", err))
			continue
		}
		if len(e.RelationsTo(path)) > 0 {
			count++
		}
	}
	return count, warnings
}
