package cloak

import (
	"fmt"
	"slices"
)

// Document is a value with an ordered set of text-bearing nodes.
//
// NodeIDs returns node ids in traversal order; ids must be unique and
// stable for the life of the value. The engine masks a clone, never the
// caller's document.
type Document[D any] interface {
	Cloner[D]
	NodeIDs() []string
	Text(id string) (string, bool)
	SetText(id, text string) error
}

// Identified is implemented by documents that carry their own identifier.
// The id is recorded in the CloakMap.
type Identified interface {
	DocumentID() string
}

// TextNode is one text-bearing node of a TextDocument.
type TextNode struct {
	ID    string `json:"id" yaml:"id" bson:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty" bson:"label,omitempty"` // paragraph, heading, table_cell, ...
	Text  string `json:"text" yaml:"text" bson:"text"`
}

// TextDocument is an ordered arena of text nodes addressed by stable ids.
type TextDocument struct {
	ID    string     `json:"id,omitempty" yaml:"id,omitempty" bson:"id,omitempty"`
	Nodes []TextNode `json:"nodes" yaml:"nodes" bson:"nodes"`

	index map[string]int
}

// NewTextDocument returns a document over nodes.
// Duplicate node ids are rejected with ErrInvalidDocument.
func NewTextDocument(id string, nodes ...TextNode) (*TextDocument, error) {
	d := &TextDocument{ID: id, Nodes: slices.Clone(nodes)}
	if err := d.reindex(); err != nil {
		return nil, err
	}
	return d, nil
}

// Paragraphs returns a document with one node per text, ids "p0", "p1", ...
func Paragraphs(id string, texts ...string) *TextDocument {
	nodes := make([]TextNode, len(texts))
	for i, t := range texts {
		nodes[i] = TextNode{ID: fmt.Sprintf("p%d", i), Label: "paragraph", Text: t}
	}
	d, _ := NewTextDocument(id, nodes...) // generated ids are unique
	return d
}

// Clone returns a deep copy of d.
func (d *TextDocument) Clone() *TextDocument {
	if d == nil {
		return nil
	}
	c := &TextDocument{ID: d.ID, Nodes: slices.Clone(d.Nodes)}
	_ = c.reindex() // ids were already validated or are checked by the engine
	return c
}

// DocumentID returns the document identifier.
func (d *TextDocument) DocumentID() string {
	return d.ID
}

// NodeIDs returns node ids in document order.
func (d *TextDocument) NodeIDs() []string {
	ids := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Text returns the text of node id.
func (d *TextDocument) Text(id string) (string, bool) {
	i, ok := d.find(id)
	if !ok {
		return "", false
	}
	return d.Nodes[i].Text, true
}

// SetText replaces the text of node id.
func (d *TextDocument) SetText(id, text string) error {
	i, ok := d.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	d.Nodes[i].Text = text
	return nil
}

// String joins node texts with blank lines.
func (d *TextDocument) String() string {
	var n int
	for _, node := range d.Nodes {
		n += len(node.Text) + 2
	}
	b := make([]byte, 0, n)
	for i, node := range d.Nodes {
		if i > 0 {
			b = append(b, '\n', '\n')
		}
		b = append(b, node.Text...)
	}
	return string(b)
}

func (d *TextDocument) find(id string) (int, bool) {
	if d.index != nil {
		i, ok := d.index[id]
		return i, ok
	}
	for i, n := range d.Nodes {
		if n.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (d *TextDocument) reindex() error {
	index := make(map[string]int, len(d.Nodes))
	for i, n := range d.Nodes {
		if _, dup := index[n.ID]; dup {
			d.index = nil
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidDocument, n.ID)
		}
		index[n.ID] = i
	}
	d.index = index
	return nil
}
