// Package topology implements the YAML topology document model. A Document
// wraps the parsed yaml.v3 node tree rather than a decoded struct so that
// comments, key order and formatting survive an edit round-trip; node canvas
// positions ride along as comments attached to each node key (see
// positions.go).
package topology

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports malformed YAML. Callers treat the document as invalid
// and keep the editor session alive instead of crashing.
type ParseError struct {
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return "topology parse: " + e.Message
}

// Document is a parsed topology definition. All structural mutators operate
// on the receiver; callers wanting copy-on-write semantics clone first.
type Document struct {
	root *yaml.Node
}

// GraphNode is one vertex of the derived node/link graph.
type GraphNode struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Image string `json:"image,omitempty"`
}

// GraphLink is one edge of the derived graph, endpoints reduced to node names.
type GraphLink struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the plain node/edge list handed to the rendering layer.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// Parse decodes a raw YAML string into a Document. Malformed YAML is
// returned as a *ParseError carrying the parser's human-readable message.
// An empty string parses to an empty document.
func Parse(raw string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &root); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "topology definition must be a YAML mapping"}
	}
	return &Document{root: &root}, nil
}

// Serialize renders the document back to YAML, preserving comments and key
// order of everything an edit did not touch.
func (d *Document) Serialize() (string, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(d.root.Content[0]); err != nil {
		return "", fmt.Errorf("failed to serialize topology: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to serialize topology: %w", err)
	}
	return sb.String(), nil
}

// Clone returns a deep copy sharing no nodes with the receiver.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root)}
}

// Name returns the topology's name, or "" when unset.
func (d *Document) Name() string {
	if v := mapValue(d.top(), "name"); v != nil {
		return v.Value
	}
	return ""
}

// SetName sets or replaces the topology's name.
func (d *Document) SetName(name string) {
	v := ensureMapValue(d.top(), "name", yaml.ScalarNode)
	v.Tag = "!!str"
	v.Value = name
}

// NodeNames returns the node names in definition order.
func (d *Document) NodeNames() []string {
	nodes := d.nodesMap()
	if nodes == nil {
		return nil
	}
	names := make([]string, 0, len(nodes.Content)/2)
	for i := 0; i < len(nodes.Content); i += 2 {
		names = append(names, nodes.Content[i].Value)
	}
	return names
}

// HasNode reports whether a node with the given name exists.
func (d *Document) HasNode(name string) bool {
	nodes := d.nodesMap()
	if nodes == nil {
		return false
	}
	return mapValue(nodes, name) != nil
}

// Graph derives the plain node/edge list from the document. Link endpoints
// written as "node:interface" are reduced to the node name.
func (d *Document) Graph() Graph {
	var g Graph
	if nodes := d.nodesMap(); nodes != nil {
		for i := 0; i+1 < len(nodes.Content); i += 2 {
			name := nodes.Content[i].Value
			props := nodes.Content[i+1]
			gn := GraphNode{Name: name}
			if v := mapValue(props, "kind"); v != nil {
				gn.Kind = v.Value
			}
			if v := mapValue(props, "image"); v != nil {
				gn.Image = v.Value
			}
			g.Nodes = append(g.Nodes, gn)
		}
	}
	if links := d.linksSeq(); links != nil {
		for _, item := range links.Content {
			eps := mapValue(item, "endpoints")
			if eps == nil || len(eps.Content) < 2 {
				continue
			}
			g.Links = append(g.Links, GraphLink{
				From: endpointNode(eps.Content[0].Value),
				To:   endpointNode(eps.Content[1].Value),
			})
		}
	}
	return g
}

// AddNode appends a node with the given kind (and optional image) to the
// topology. Node names are unique within a document.
func (d *Document) AddNode(name, kind, image string) error {
	if d.HasNode(name) {
		return fmt.Errorf("node %q already exists", name)
	}
	nodes := d.ensureNodesMap()
	props := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	appendMapEntry(props, "kind", kind)
	if image != "" {
		appendMapEntry(props, "image", image)
	}
	nodes.Content = append(nodes.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
		props,
	)
	return nil
}

// DeleteNode removes a node and every link referencing it. It returns false
// when the node does not exist, leaving the document untouched.
func (d *Document) DeleteNode(name string) bool {
	nodes := d.nodesMap()
	if nodes == nil || !deleteMapEntry(nodes, name) {
		return false
	}
	if links := d.linksSeq(); links != nil {
		kept := links.Content[:0]
		for _, item := range links.Content {
			if !linkTouches(item, name) {
				kept = append(kept, item)
			}
		}
		links.Content = kept
	}
	return true
}

// ConnectNodes appends a link between two existing nodes, picking the next
// free interface index on each side.
func (d *Document) ConnectNodes(a, b string) error {
	if !d.HasNode(a) {
		return fmt.Errorf("node %q does not exist", a)
	}
	if !d.HasNode(b) {
		return fmt.Errorf("node %q does not exist", b)
	}
	links := d.ensureLinksSeq()
	epA := fmt.Sprintf("%s:eth%d", a, d.endpointCount(a)+1)
	epB := fmt.Sprintf("%s:eth%d", b, d.endpointCount(b)+1)
	link := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	eps := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	eps.Content = []*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: epA},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: epB},
	}
	link.Content = []*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "endpoints"},
		eps,
	}
	links.Content = append(links.Content, link)
	return nil
}

// ClearTopology removes every node and link, keeping the topology name.
func (d *Document) ClearTopology() {
	if nodes := d.nodesMap(); nodes != nil {
		nodes.Content = nil
	}
	if topo := mapValue(d.top(), "topology"); topo != nil {
		deleteMapEntry(topo, "links")
	}
}

// --- node tree helpers ---

func (d *Document) top() *yaml.Node {
	return d.root.Content[0]
}

func (d *Document) nodesMap() *yaml.Node {
	topo := mapValue(d.top(), "topology")
	if topo == nil {
		return nil
	}
	return mapValue(topo, "nodes")
}

func (d *Document) ensureNodesMap() *yaml.Node {
	topo := ensureMapValue(d.top(), "topology", yaml.MappingNode)
	return ensureMapValue(topo, "nodes", yaml.MappingNode)
}

func (d *Document) linksSeq() *yaml.Node {
	topo := mapValue(d.top(), "topology")
	if topo == nil {
		return nil
	}
	return mapValue(topo, "links")
}

func (d *Document) ensureLinksSeq() *yaml.Node {
	topo := ensureMapValue(d.top(), "topology", yaml.MappingNode)
	return ensureMapValue(topo, "links", yaml.SequenceNode)
}

func (d *Document) endpointCount(node string) int {
	links := d.linksSeq()
	if links == nil {
		return 0
	}
	count := 0
	for _, item := range links.Content {
		if linkTouches(item, node) {
			count++
		}
	}
	return count
}

func linkTouches(link *yaml.Node, node string) bool {
	eps := mapValue(link, "endpoints")
	if eps == nil {
		return false
	}
	for _, ep := range eps.Content {
		if endpointNode(ep.Value) == node {
			return true
		}
	}
	return false
}

func endpointNode(endpoint string) string {
	if i := strings.IndexByte(endpoint, ':'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	// Anchors/aliases are not used in container-lab definitions; dropping
	// the alias pointer keeps the copy free of references into the source.
	c.Alias = nil
	c.Content = make([]*yaml.Node, len(n.Content))
	for i, child := range n.Content {
		c.Content[i] = cloneNode(child)
	}
	return &c
}

func mapValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func mapKey(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i]
		}
	}
	return nil
}

func ensureMapValue(m *yaml.Node, key string, kind yaml.Kind) *yaml.Node {
	if v := mapValue(m, key); v != nil {
		return v
	}
	v := &yaml.Node{Kind: kind}
	switch kind {
	case yaml.MappingNode:
		v.Tag = "!!map"
	case yaml.SequenceNode:
		v.Tag = "!!seq"
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		v,
	)
	return v
}

func appendMapEntry(m *yaml.Node, key, value string) {
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

func deleteMapEntry(m *yaml.Node, key string) bool {
	if m == nil || m.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}
