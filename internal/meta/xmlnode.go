// Package meta parses the two vendor metadata dialects into the group map,
// display map, and per-mesh transforms the coordinator consumes. The two
// vendors are modeled as variants of one sealed Provider abstraction.
//
// Vendor XML is schema-less in practice, so documents are decoded into a
// generic node tree and walked by tag name instead of being mapped onto
// rigid structs.
package meta

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Node is one element of a vendor XML document.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// ParseXMLFile reads and decodes a vendor XML file. UTF-16 documents (either
// byte order) are detected by BOM and transcoded before decoding; the inline
// encoding declaration is ignored since the payload is already UTF-8 by then.
func ParseXMLFile(path string) (*Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	utf8Bytes, err := decodeToUTF8(raw)
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(utf8Bytes))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	var root Node
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

func decodeToUTF8(raw []byte) ([]byte, error) {
	if len(raw) >= 2 && ((raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF)) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, raw)
		return out, err
	}
	// Strip a UTF-8 BOM if present.
	return bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF}), nil
}

// Local returns the node's local tag name.
func (n *Node) Local() string { return n.XMLName.Local }

// Attr returns the value of the named attribute (case-insensitive).
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}

// Child returns the first direct child with the given local name
// (case-insensitive), or nil.
func (n *Node) Child(name string) *Node {
	for i := range n.Children {
		if strings.EqualFold(n.Children[i].XMLName.Local, name) {
			return &n.Children[i]
		}
	}
	return nil
}

// ChildText returns the trimmed text of the named direct child.
func (n *Node) ChildText(name string) string {
	if c := n.Child(name); c != nil {
		return strings.TrimSpace(c.Text)
	}
	return ""
}

// FindAll returns every descendant (including n itself) whose local name
// matches, in document order.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	n.walk(func(node *Node) {
		if strings.EqualFold(node.XMLName.Local, name) {
			out = append(out, node)
		}
	})
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for i := range n.Children {
		n.Children[i].walk(fn)
	}
}

// DeepText concatenates the trimmed text of n and all descendants, separated
// by single spaces.
func (n *Node) DeepText() string {
	var parts []string
	n.walk(func(node *Node) {
		if t := strings.TrimSpace(node.Text); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// DeepTags concatenates the local tag names of n and all descendants.
func (n *Node) DeepTags() string {
	var parts []string
	n.walk(func(node *Node) {
		parts = append(parts, node.XMLName.Local)
	})
	return strings.Join(parts, " ")
}
