// Package xmltree parses an XML document into a navigable element tree and
// provides a small path language to look up elements by name, attribute and
// child-element value. It exists so that callers can express the gateway's
// element-path vocabulary as plain strings instead of hand-walking the tree.
//
// Supported path syntax (a subset of XPath):
//
//	./appliance                           direct child
//	.//logs/point_log                     any-depth descendant, then child
//	./location[@id='abc']                 attribute predicate
//	./point_log[type='temperature']       child-element text predicate
//	./module/*                            wildcard
//
// Predicates can be combined: ./measurement[@directionality='consumed'][@tariff='nl_peak'].
package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var ErrInvalidXML = errors.New("invalid xml")

// Node is one element in the parsed document.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

// Parse reads an XML document and returns its root element.
func Parse(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)
	var root *Node
	var stack []*Node

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidXML, err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, attr := range t.Attr {
					node.Attrs[attr.Name.Local] = attr.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrInvalidXML)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end element", ErrInvalidXML)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidXML)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unclosed element", ErrInvalidXML)
	}
	root.trim()
	return root, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

func (n *Node) trim() {
	n.Text = strings.TrimSpace(n.Text)
	for _, child := range n.Children {
		child.trim()
	}
}

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, child := range n.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// ChildText returns the text of the first direct child with the given name, or "".
func (n *Node) ChildText(name string) string {
	if child := n.Child(name); child != nil {
		return child.Text
	}
	return ""
}

// Find returns the first element matching the path, or nil.
func (n *Node) Find(path string) *Node {
	if matches := n.findAll(path, true); len(matches) > 0 {
		return matches[0]
	}
	return nil
}

// FindAll returns all elements matching the path.
func (n *Node) FindAll(path string) []*Node {
	return n.findAll(path, false)
}

// Remove deletes the given direct child. It reports whether the child was found.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Append adds a direct child.
func (n *Node) Append(child *Node) {
	n.Children = append(n.Children, child)
}

func (n *Node) findAll(path string, first bool) []*Node {
	if n == nil {
		return nil
	}
	segments, err := parsePath(path)
	if err != nil {
		return nil
	}
	current := []*Node{n}
	for _, segment := range segments {
		var next []*Node
		for _, node := range current {
			if segment.descendant {
				node.walk(func(candidate *Node) {
					if segment.matches(candidate) {
						next = append(next, candidate)
					}
				})
			} else {
				for _, child := range node.Children {
					if segment.matches(child) {
						next = append(next, child)
					}
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	if first && len(current) > 1 {
		current = current[:1]
	}
	return current
}

func (n *Node) walk(visit func(*Node)) {
	for _, child := range n.Children {
		visit(child)
		child.walk(visit)
	}
}

type predicate struct {
	attribute bool
	key       string
	value     string
}

type segment struct {
	name       string
	descendant bool
	predicates []predicate
}

func (s segment) matches(n *Node) bool {
	if s.name != "*" && s.name != n.Name {
		return false
	}
	for _, p := range s.predicates {
		if p.attribute {
			if n.Attr(p.key) != p.value {
				return false
			}
		} else if n.ChildText(p.key) != p.value {
			return false
		}
	}
	return true
}

func parsePath(path string) ([]segment, error) {
	path = strings.TrimPrefix(path, ".")
	descendant := false
	if strings.HasPrefix(path, "//") {
		descendant = true
		path = path[2:]
	} else {
		path = strings.TrimPrefix(path, "/")
	}

	var segments []segment
	for _, part := range splitPath(path) {
		if part == "" {
			return nil, fmt.Errorf("empty path segment in %q", path)
		}
		seg := segment{descendant: descendant}
		descendant = false

		name := part
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(name[open:], ']')
			if closing < 0 {
				return nil, fmt.Errorf("unterminated predicate in %q", part)
			}
			expr := name[open+1 : open+closing]
			pred, err := parsePredicate(expr)
			if err != nil {
				return nil, err
			}
			seg.predicates = append(seg.predicates, pred)
			name = name[:open] + name[open+closing+1:]
		}
		seg.name = name
		segments = append(segments, seg)
	}
	return segments, nil
}

func parsePredicate(expr string) (predicate, error) {
	var pred predicate
	if strings.HasPrefix(expr, "@") {
		pred.attribute = true
		expr = expr[1:]
	}
	key, value, found := strings.Cut(expr, "=")
	if !found {
		return pred, fmt.Errorf("unsupported predicate %q", expr)
	}
	value = strings.Trim(value, `'"`)
	pred.key = key
	pred.value = value
	return pred, nil
}

// splitPath splits on '/' outside predicate brackets.
func splitPath(path string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '/':
			if depth == 0 {
				parts = append(parts, path[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// XML renders the subtree as an XML fragment. Attribute order is not
// guaranteed stable across nodes built by Parse; nodes built by hand render
// attributes in insertion order of the map, so callers that need byte-exact
// output should build fragments with fmt.Sprintf instead.
func (n *Node) XML() string {
	var sb strings.Builder
	n.writeXML(&sb)
	return sb.String()
}

func (n *Node) writeXML(sb *strings.Builder) {
	sb.WriteByte('<')
	sb.WriteString(n.Name)
	for _, key := range sortedKeys(n.Attrs) {
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteString(`="`)
		_ = xml.EscapeText(sb, []byte(n.Attrs[key]))
		sb.WriteByte('"')
	}
	if n.Text == "" && len(n.Children) == 0 {
		sb.WriteString(" />")
		return
	}
	sb.WriteByte('>')
	_ = xml.EscapeText(sb, []byte(n.Text))
	for _, child := range n.Children {
		child.writeXML(sb)
	}
	sb.WriteString("</")
	sb.WriteString(n.Name)
	sb.WriteByte('>')
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
