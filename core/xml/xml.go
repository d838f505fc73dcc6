// Package xml wraps xmlquery behind the small document/node surface the
// EAF importer needs: well-formedness validation, XPath queries, and
// read-only access to element names, attributes and text.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document is a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is a read-only view of one element in a Document.
type Node struct {
	node *xmlquery.Node
}

// ValidationResult reports whether a byte stream tokenizes as XML.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is one problem found during validation.
type ValidationError struct {
	Line    int
	Column  int
	Message string
}

// Validate tokenizes data and reports whether it is well-formed XML.
// Entity expansion is disabled, so documents declaring custom entities
// are rejected rather than expanded.
func Validate(data []byte) ValidationResult {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}

	for {
		_, err := dec.Token()
		if err == io.EOF {
			return ValidationResult{Valid: true}
		}
		if err != nil {
			return ValidationResult{
				Errors: []ValidationError{{Line: 1, Message: err.Error()}},
			}
		}
	}
}

// Parse builds a queryable Document from XML bytes.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Root returns the document's root element, or nil when there is none.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return &Node{node: c}
		}
	}
	return nil
}

// XPath returns every node matching expr.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	matches, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	nodes := make([]*Node, len(matches))
	for i, m := range matches {
		nodes[i] = &Node{node: m}
	}
	return nodes, nil
}

// XPathFirst returns the first node matching expr, or nil when nothing
// matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	match, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if match == nil {
		return nil, nil
	}
	return &Node{node: match}, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Attr returns the value of the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// Children returns the node's child elements. Text and comment nodes are
// skipped.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}
	var kids []*Node
	for c := n.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			kids = append(kids, &Node{node: c})
		}
	}
	return kids
}

// InnerText returns the concatenated text of the node and its descendants.
func (n *Node) InnerText() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}
