package topology

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDefinition = `name: t1
topology:
  nodes:
    # pos=10,20
    srl1:
      kind: nokia_srlinux
      image: ghcr.io/nokia/srlinux
    srl2:
      kind: nokia_srlinux
  links:
    - endpoints: ["srl1:e1-1", "srl2:e1-1"]
`

func TestParse(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc, err := Parse(sampleDefinition)
		require.NoError(t, err)
		assert.Equal(t, "t1", doc.Name())
		assert.Equal(t, []string{"srl1", "srl2"}, doc.NodeNames())
	})

	t.Run("empty string parses to empty document", func(t *testing.T) {
		doc, err := Parse("")
		require.NoError(t, err)
		assert.Empty(t, doc.NodeNames())
		assert.Equal(t, "", doc.Name())
	})

	t.Run("malformed yaml is a ParseError", func(t *testing.T) {
		_, err := Parse("name: [unclosed")
		require.Error(t, err)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.NotEmpty(t, parseErr.Message)
	})

	t.Run("non-mapping root is rejected", func(t *testing.T) {
		_, err := Parse("- just\n- a\n- list\n")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})
}

func TestSerializeRoundTrip(t *testing.T) {
	doc, err := Parse(sampleDefinition)
	require.NoError(t, err)

	out, err := doc.Serialize()
	require.NoError(t, err)

	reparsed, err := Parse(out)
	require.NoError(t, err)

	// Round-tripping must be whitespace-equivalent and keep comments.
	assert.False(t, HasEdits(doc, reparsed))
	assert.Contains(t, out, "pos=10,20")
}

func TestGraph(t *testing.T) {
	doc, err := Parse(sampleDefinition)
	require.NoError(t, err)

	g := doc.Graph()
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, GraphNode{Name: "srl1", Kind: "nokia_srlinux", Image: "ghcr.io/nokia/srlinux"}, g.Nodes[0])
	assert.Equal(t, GraphNode{Name: "srl2", Kind: "nokia_srlinux"}, g.Nodes[1])
	require.Len(t, g.Links, 1)
	assert.Equal(t, GraphLink{From: "srl1", To: "srl2"}, g.Links[0])
}

func TestAddNode(t *testing.T) {
	doc, err := Parse(sampleDefinition)
	require.NoError(t, err)

	require.NoError(t, doc.AddNode("srl3", "nokia_srlinux", ""))
	assert.True(t, doc.HasNode("srl3"))
	assert.Equal(t, []string{"srl1", "srl2", "srl3"}, doc.NodeNames())

	// Node names are unique within a document.
	assert.Error(t, doc.AddNode("srl3", "nokia_srlinux", ""))

	t.Run("into empty document", func(t *testing.T) {
		doc, err := Parse("name: empty\n")
		require.NoError(t, err)
		require.NoError(t, doc.AddNode("node1", "linux", "alpine"))
		g := doc.Graph()
		require.Len(t, g.Nodes, 1)
		assert.Equal(t, "alpine", g.Nodes[0].Image)
	})
}

func TestDeleteNode(t *testing.T) {
	doc, err := Parse(sampleDefinition)
	require.NoError(t, err)

	require.True(t, doc.DeleteNode("srl2"))
	assert.False(t, doc.HasNode("srl2"))
	// Links referencing the deleted node go with it.
	assert.Empty(t, doc.Graph().Links)

	assert.False(t, doc.DeleteNode("missing"))
}

func TestConnectNodes(t *testing.T) {
	doc, err := Parse(sampleDefinition)
	require.NoError(t, err)

	require.NoError(t, doc.ConnectNodes("srl1", "srl2"))
	g := doc.Graph()
	require.Len(t, g.Links, 2)
	assert.Equal(t, GraphLink{From: "srl1", To: "srl2"}, g.Links[1])

	// Interface indices advance past existing links.
	out, err := doc.Serialize()
	require.NoError(t, err)
	assert.Contains(t, out, "srl1:eth2")
	assert.Contains(t, out, "srl2:eth2")

	assert.Error(t, doc.ConnectNodes("srl1", "missing"))
}

func TestClearTopology(t *testing.T) {
	doc, err := Parse(sampleDefinition)
	require.NoError(t, err)

	doc.ClearTopology()
	assert.Empty(t, doc.NodeNames())
	assert.Empty(t, doc.Graph().Links)
	assert.Equal(t, "t1", doc.Name())
}

func TestClone(t *testing.T) {
	doc, err := Parse(sampleDefinition)
	require.NoError(t, err)

	clone := doc.Clone()
	require.True(t, clone.DeleteNode("srl1"))

	// The original is untouched by edits to the clone.
	assert.True(t, doc.HasNode("srl1"))
	assert.True(t, HasEdits(doc, clone))
}

func TestSetName(t *testing.T) {
	doc, err := Parse("")
	require.NoError(t, err)
	doc.SetName("fresh")
	assert.Equal(t, "fresh", doc.Name())

	out, err := doc.Serialize()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "name: fresh"))
}

func TestCommentPositions(t *testing.T) {
	var store PositionStore = CommentPositions{}

	t.Run("recovers parsed annotation", func(t *testing.T) {
		doc, err := Parse(sampleDefinition)
		require.NoError(t, err)
		pos, ok := store.Get(doc, "srl1")
		require.True(t, ok)
		assert.Equal(t, Position{X: 10, Y: 20}, pos)

		_, ok = store.Get(doc, "srl2")
		assert.False(t, ok)
	})

	t.Run("set then round-trip", func(t *testing.T) {
		doc, err := Parse(sampleDefinition)
		require.NoError(t, err)
		require.NoError(t, store.Set(doc, "srl2", Position{X: 300, Y: -4}))

		out, err := doc.Serialize()
		require.NoError(t, err)
		reparsed, err := Parse(out)
		require.NoError(t, err)

		pos, ok := store.Get(reparsed, "srl2")
		require.True(t, ok)
		assert.Equal(t, Position{X: 300, Y: -4}, pos)
	})

	t.Run("set replaces existing annotation", func(t *testing.T) {
		doc, err := Parse(sampleDefinition)
		require.NoError(t, err)
		require.NoError(t, store.Set(doc, "srl1", Position{X: 1, Y: 2}))
		pos, ok := store.Get(doc, "srl1")
		require.True(t, ok)
		assert.Equal(t, Position{X: 1, Y: 2}, pos)

		out, err := doc.Serialize()
		require.NoError(t, err)
		assert.NotContains(t, out, "pos=10,20")
	})

	t.Run("annotation survives unrelated edits", func(t *testing.T) {
		doc, err := Parse(sampleDefinition)
		require.NoError(t, err)
		require.NoError(t, doc.AddNode("srl3", "nokia_srlinux", ""))
		require.True(t, doc.DeleteNode("srl2"))

		out, err := doc.Serialize()
		require.NoError(t, err)
		reparsed, err := Parse(out)
		require.NoError(t, err)

		pos, ok := store.Get(reparsed, "srl1")
		require.True(t, ok)
		assert.Equal(t, Position{X: 10, Y: 20}, pos)
	})

	t.Run("missing node is an error", func(t *testing.T) {
		doc, err := Parse(sampleDefinition)
		require.NoError(t, err)
		assert.Error(t, store.Set(doc, "missing", Position{}))
	})
}
