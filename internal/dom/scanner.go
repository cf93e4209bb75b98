package dom

import (
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// Candidate is one structural match: the leaf text and the visible text of
// the leaf's grandparent container.
type Candidate struct {
	Text string
	// Context is empty when HasContext is false.
	Context    string
	HasContext bool
}

// Pattern describes the emphasized-label markup the scanner matches.
type Pattern struct {
	ContainerTag string
	ClassMarker  string
	LeafTag      string
}

// DefaultPattern matches //div[contains(@class,'font-semibold')]/span.
func DefaultPattern() Pattern {
	return Pattern{
		ContainerTag: "div",
		ClassMarker:  "font-semibold",
		LeafTag:      "span",
	}
}

// Scanner yields candidates from a rendered tree.
type Scanner struct {
	pattern Pattern
}

// NewScanner returns a scanner for the given pattern. Empty fields fall back
// to DefaultPattern.
func NewScanner(pattern Pattern) *Scanner {
	def := DefaultPattern()
	if pattern.ContainerTag == "" {
		pattern.ContainerTag = def.ContainerTag
	}
	if pattern.ClassMarker == "" {
		pattern.ClassMarker = def.ClassMarker
	}
	if pattern.LeafTag == "" {
		pattern.LeafTag = def.LeafTag
	}
	return &Scanner{pattern: pattern}
}

// Scan returns the candidates of root in depth-first pre-order. The sequence
// can be ranged over more than once.
func (s *Scanner) Scan(root *html.Node) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		if root == nil {
			return
		}
		walk(root, func(n *html.Node) bool {
			if !s.matches(n) {
				return true
			}
			return yield(s.candidate(n))
		})
	}
}

// Collect is a convenience for callers that want a slice.
func (s *Scanner) Collect(root *html.Node) []Candidate {
	var out []Candidate
	for c := range s.Scan(root) {
		out = append(out, c)
	}
	return out
}

func (s *Scanner) matches(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != s.pattern.LeafTag {
		return false
	}
	parent := n.Parent
	if parent == nil || parent.Type != html.ElementNode || parent.Data != s.pattern.ContainerTag {
		return false
	}
	return strings.Contains(attr(parent, "class"), s.pattern.ClassMarker)
}

func (s *Scanner) candidate(n *html.Node) Candidate {
	c := Candidate{Text: VisibleText(n)}
	grandparent := n.Parent.Parent
	if grandparent == nil || grandparent.Type != html.ElementNode {
		return c
	}
	c.Context = VisibleText(grandparent)
	c.HasContext = true
	return c
}

// walk visits n and its descendants in pre-order until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if !walk(child, visit) {
			return false
		}
	}
	return true
}

// blockElements break the text flow; inline markup and comments do not.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
	"thead": true, "tr": true, "ul": true,
}

// VisibleText concatenates the text below n, skipping script and style.
// Adjacent text nodes join without a separator; block element boundaries
// become whitespace, and runs of whitespace collapse to one space.
func VisibleText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			b.WriteString(node.Data)
			return
		case html.ElementNode:
			switch node.Data {
			case "script", "style", "noscript", "template":
				return
			}
		case html.CommentNode:
			return
		}
		block := node.Type == html.ElementNode && blockElements[node.Data]
		if block {
			b.WriteByte(' ')
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// HasText reports whether any element named tag below root carries visible
// text. Renderers use it as the liveness signal.
func HasText(root *html.Node, tag string) bool {
	found := false
	if root == nil {
		return false
	}
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag && VisibleText(n) != "" {
			found = true
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
