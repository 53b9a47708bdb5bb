package entry

// Kind is a relationship type from the closed taxonomy.
//
// Kinds are partitioned into symmetric kinds — semantically undirected,
// where a relation A→B implies a mirrored relation B→A with the same kind —
// and directional kinds, which have a defined inverse kind but whose inverse
// edge is never created automatically.
type Kind string

const (
	// Symmetric kinds. The engine mirrors these onto the target entry.
	KindRelated       Kind = "related"
	KindSimilarTo     Kind = "similar_to"
	KindConflictsWith Kind = "conflicts_with"

	// Directional kinds. Each has an inverse; the inverse edge is NOT
	// auto-created, mirroring applies to symmetric kinds only.
	KindSupersedes    Kind = "supersedes"
	KindSupersededBy  Kind = "superseded_by"
	KindImplements    Kind = "implements"
	KindImplementedBy Kind = "implemented_by"
	KindReferences    Kind = "references"
	KindReferencedBy  Kind = "referenced_by"
	KindExtends       Kind = "extends"
	KindExtendedBy    Kind = "extended_by"
)

// symmetricKinds is the set of undirected relationship kinds.
var symmetricKinds = map[Kind]bool{
	KindRelated:       true,
	KindSimilarTo:     true,
	KindConflictsWith: true,
}

// inverseKinds maps each directional kind to its inverse.
var inverseKinds = map[Kind]Kind{
	KindSupersedes:    KindSupersededBy,
	KindSupersededBy:  KindSupersedes,
	KindImplements:    KindImplementedBy,
	KindImplementedBy: KindImplements,
	KindReferences:    KindReferencedBy,
	KindReferencedBy:  KindReferences,
	KindExtends:       KindExtendedBy,
	KindExtendedBy:    KindExtends,
}

// KnownKinds lists every kind in the taxonomy.
var KnownKinds = []Kind{
	KindRelated, KindSimilarTo, KindConflictsWith,
	KindSupersedes, KindSupersededBy,
	KindImplements, KindImplementedBy,
	KindReferences, KindReferencedBy,
	KindExtends, KindExtendedBy,
}

// Valid reports whether k belongs to the taxonomy.
func (k Kind) Valid() bool {
	return symmetricKinds[k] || inverseKinds[k] != ""
}

// IsSymmetric reports whether k is an undirected kind that the engine
// mirrors onto the target entry.
func IsSymmetric(k Kind) bool {
	return symmetricKinds[k]
}

// Inverse returns the inverse kind for k.
//
// Symmetric kinds are their own inverse. For an unknown kind the second
// return value is false.
func Inverse(k Kind) (Kind, bool) {
	if symmetricKinds[k] {
		return k, true
	}
	if inv, ok := inverseKinds[k]; ok {
		return inv, true
	}
	return "", false
}
