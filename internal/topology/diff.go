package topology

import "strings"

// ChangeKind classifies the structural difference between two documents.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	// ChangeCleared means the edit removed every node from a previously
	// non-empty graph.
	ChangeCleared
	// ChangeNodeDeleted means one or more nodes disappeared.
	ChangeNodeDeleted
	// ChangeOther covers every remaining semantic difference.
	ChangeOther
)

// Change describes the structural diff between an original and an edited
// document.
type Change struct {
	Kind         ChangeKind
	DeletedNodes []string
}

// HasEdits reports whether the editing document differs meaningfully from
// the original. Both sides are serialized and compared with all whitespace
// stripped, which absorbs formatting-only churn from round-tripping through
// a text editor while still catching any semantic change. A side that fails
// to serialize always counts as edited: a broken edit must never be
// silently discarded as "no edits".
func HasEdits(original, editing *Document) bool {
	if original == nil && editing == nil {
		return false
	}
	if original == nil || editing == nil {
		return true
	}
	a, errA := original.Serialize()
	b, errB := editing.Serialize()
	if errA != nil || errB != nil {
		return true
	}
	return stripWhitespace(a) != stripWhitespace(b)
}

// Describe reports the structural change from original to editing: cleared
// graph, deleted nodes, or an unspecified edit.
func Describe(original, editing *Document) Change {
	if !HasEdits(original, editing) {
		return Change{Kind: ChangeNone}
	}
	if original == nil || editing == nil {
		return Change{Kind: ChangeOther}
	}
	before := original.NodeNames()
	after := make(map[string]bool)
	for _, name := range editing.NodeNames() {
		after[name] = true
	}
	if len(after) == 0 && len(before) > 0 {
		return Change{Kind: ChangeCleared, DeletedNodes: before}
	}
	var deleted []string
	for _, name := range before {
		if !after[name] {
			deleted = append(deleted, name)
		}
	}
	if len(deleted) > 0 {
		return Change{Kind: ChangeNodeDeleted, DeletedNodes: deleted}
	}
	return Change{Kind: ChangeOther}
}

func stripWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
