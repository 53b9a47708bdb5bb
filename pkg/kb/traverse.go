package kb

import (
	"context"
	"errors"
	"fmt"

	"github.com/orneryd/mimirkb/pkg/entry"
	"github.com/orneryd/mimirkb/pkg/store"
)

// TraversalNode is one node in the tree expansion a traversal produces.
//
// The graph under the store is cyclic; ReadWithDepth walks it as a tree.
// A node is either resolved (Entry set, Related populated when the walk
// went deeper) or a circular-reference marker (Circular set, nothing
// else) terminating a branch that revisited one of its own ancestors.
type TraversalNode struct {
	Path string `json:"path"`

	// Entry holds the resolved document. Nil on circular markers.
	Entry *entry.Entry `json:"entry,omitempty"`

	// Circular marks a path already visited on this branch.
	Circular bool `json:"circular_reference,omitempty"`

	// Related embeds the expanded neighbors. Absent entirely — not
	// empty — when the depth budget is spent or the entry has no
	// relations.
	Related []TraversalEdge `json:"related,omitempty"`
}

// TraversalEdge is one expanded relation on a traversal node. Exactly one
// of Content or Error is set: neighbors that fail to load are embedded as
// errors instead of failing the whole traversal.
type TraversalEdge struct {
	Relationship entry.Kind     `json:"relationship"`
	Description  string         `json:"description,omitempty"`
	Content      *TraversalNode `json:"content,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// ReadWithDepth reads the entry at path together with its linked
// neighborhood, depth hops deep.
//
// depth=1 reads just the entry; depth=3 on a chain A→B→C embeds B under A
// and C under B. The walk is cycle-safe: each branch carries its own copy
// of the visited set, so only a branch's own ancestors terminate it — a
// node reachable through two sibling branches appears under both. The
// root must exist and decode; its NotFound/Malformed propagates. Neighbor
// failures are embedded per-edge.
//
// depth is clamped to [1, MaxTraversalDepth].
func (k *KB) ReadWithDepth(ctx context.Context, path string, depth int) (*TraversalNode, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	p, err := store.NormalizePath(path)
	if err != nil {
		return nil, err
	}

	if depth < 1 {
		depth = 1
	}
	if depth > k.config.MaxTraversalDepth {
		depth = k.config.MaxTraversalDepth
	}

	node, err := k.readNode(p, depth, map[string]bool{})
	if err != nil {
		k.metrics.RecordOperation("traverse", "error")
		return nil, err
	}
	k.metrics.RecordOperation("traverse", "ok")
	return node, nil
}

// readNode is the recursive walk. visited holds the ancestors of the
// current branch only; every recursion gets its own copy so sibling
// branches cannot suppress each other.
func (k *KB) readNode(path string, depth int, visited map[string]bool) (*TraversalNode, error) {
	if visited[path] {
		return &TraversalNode{Path: path, Circular: true}, nil
	}

	e, err := k.store.Read(path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	node := &TraversalNode{Path: path, Entry: e}
	if depth <= 1 || len(e.RelatedTo) == 0 {
		return node, nil
	}

	branch := make(map[string]bool, len(visited)+1)
	for p := range visited {
		branch[p] = true
	}
	branch[path] = true

	for _, rel := range e.RelatedTo {
		edge := TraversalEdge{
			Relationship: rel.Kind,
			Description:  rel.Description,
		}
		target, err := store.NormalizePath(rel.Path)
		if err != nil {
			edge.Error = fmt.Sprintf("invalid target path %q", rel.Path)
			node.Related = append(node.Related, edge)
			continue
		}
		child, err := k.readNode(target, depth-1, branch)
		if err != nil {
			edge.Error = err.Error()
		} else {
			edge.Content = child
		}
		node.Related = append(node.Related, edge)
	}
	return node, nil
}
