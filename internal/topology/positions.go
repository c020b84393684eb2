package topology

import (
	"fmt"
	"strings"
)

// Position is a node's canvas location.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PositionStore reads and writes node canvas positions for a document. The
// default implementation stashes them in YAML comments; keeping the strategy
// behind an interface lets it be swapped for a sidecar field if comment
// preservation proves unreliable.
type PositionStore interface {
	Get(doc *Document, node string) (Position, bool)
	Set(doc *Document, node string, pos Position) error
}

// positionMarker prefixes the comment line carrying a node's coordinates,
// e.g. "# pos=120,64" above the node's key.
const positionMarker = "pos="

// CommentPositions stores positions as a head comment on each node's key.
// yaml.v3 keeps head comments attached to their node across unrelated edits,
// which makes the annotation round-trip safe.
type CommentPositions struct{}

// Get recovers the position annotation for a node, if present.
func (CommentPositions) Get(doc *Document, node string) (Position, bool) {
	key := mapKey(doc.nodesMap(), node)
	if key == nil {
		return Position{}, false
	}
	for _, line := range strings.Split(key.HeadComment, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if !strings.HasPrefix(line, positionMarker) {
			continue
		}
		var p Position
		if _, err := fmt.Sscanf(line, "pos=%d,%d", &p.X, &p.Y); err == nil {
			return p, true
		}
	}
	return Position{}, false
}

// Set writes or replaces the position annotation for a node. Comment lines
// other than the marker are preserved.
func (CommentPositions) Set(doc *Document, node string, pos Position) error {
	key := mapKey(doc.nodesMap(), node)
	if key == nil {
		return fmt.Errorf("node %q does not exist", node)
	}
	marker := fmt.Sprintf("%s%d,%d", positionMarker, pos.X, pos.Y)
	var kept []string
	for _, line := range strings.Split(key.HeadComment, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if trimmed == "" || strings.HasPrefix(trimmed, positionMarker) {
			continue
		}
		kept = append(kept, line)
	}
	key.HeadComment = strings.Join(append(kept, marker), "\n")
	return nil
}
