// Package stanza models parsed XMPP protocol events as a generic element
// tree and classifies them by semantic intent. The transport collaborator
// owns framing (TLS, SASL, XML parsing) and delivers ready-made trees.
package stanza

import "strings"

// Node is one element of a parsed stanza. Different stanza purposes nest
// payloads at different depths, so the tree is generic rather than a fixed
// schema. All accessors are nil-safe so shape probing never panics.
type Node struct {
	Name     string            `json:"name"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty"`
	Text     string            `json:"text,omitempty"`
}

// Attr returns the value of an attribute, or empty string.
func (n *Node) Attr(key string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// Child returns the first direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c != nil && c.Name == name {
			return c
		}
	}
	return nil
}

// Find returns the first descendant with the given name using a depth-first
// walk, or nil.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if c.Name == name {
			return c
		}
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// ID returns the stanza correlation id.
func (n *Node) ID() string {
	return n.Attr("id")
}

// From returns the stanza origin address.
func (n *Node) From() string {
	return n.Attr("from")
}

// Purpose extracts the request purpose from a correlation id. Request ids
// are "<purpose>:<uuid>"; responses echo the id, so the purpose survives the
// round trip. Ids without a separator are their own purpose.
func Purpose(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[:i]
	}
	return id
}
