package delivery

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const DefaultMaxSegmentChars = 4096

// Segment is one outbound WhatsApp text message.
type Segment struct {
	Index int
	Text  string
}

// Formatter renders the model's markdown into WhatsApp markup and splits it
// into deliverable segments.
type Formatter struct {
	md       goldmark.Markdown
	maxChars int
}

func NewFormatter(maxChars int) *Formatter {
	if maxChars <= 0 {
		maxChars = DefaultMaxSegmentChars
	}
	return &Formatter{
		md:       goldmark.New(goldmark.WithExtensions(extension.Strikethrough)),
		maxChars: maxChars,
	}
}

// Format returns the segments of content in delivery order. Blank content
// yields no segments.
func (f *Formatter) Format(content string) []Segment {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var out []Segment
	for _, block := range f.Blocks(content) {
		for _, piece := range splitLong(block, f.maxChars) {
			out = append(out, Segment{Index: len(out), Text: piece})
		}
	}
	return out
}

// Blocks renders content and returns its top level blocks (paragraphs,
// lists, code blocks) as WhatsApp formatted text.
func (f *Formatter) Blocks(content string) []string {
	src := []byte(content)
	doc := f.md.Parser().Parse(text.NewReader(src))

	r := &renderer{src: src}
	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		r.buf.Reset()
		r.block(n, 0)
		if s := strings.TrimSpace(r.buf.String()); s != "" {
			blocks = append(blocks, s)
		}
	}
	return blocks
}

type renderer struct {
	src []byte
	buf strings.Builder
}

func (r *renderer) block(n ast.Node, depth int) {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.inlines(node)
	case *ast.Heading:
		r.buf.WriteString("*")
		r.inlines(node)
		r.buf.WriteString("*")
	case *ast.List:
		r.list(node, depth)
	case *ast.FencedCodeBlock:
		r.code(node)
	case *ast.CodeBlock:
		r.code(node)
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if c != node.FirstChild() {
				r.buf.WriteString("\n")
			}
			r.buf.WriteString("> ")
			r.block(c, depth)
		}
	case *ast.ThematicBreak:
		r.buf.WriteString("───")
	case *ast.HTMLBlock:
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			r.buf.Write(seg.Value(r.src))
		}
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			r.block(c, depth)
		}
	}
}

func (r *renderer) list(list *ast.List, depth int) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	first := true
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		if !first {
			r.buf.WriteString("\n")
		}
		first = false
		r.buf.WriteString(strings.Repeat("  ", depth))
		if list.IsOrdered() {
			r.buf.WriteString(strconv.Itoa(number) + ". ")
			number++
		} else {
			r.buf.WriteString("• ")
		}
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if nested, ok := c.(*ast.List); ok {
				r.buf.WriteString("\n")
				r.list(nested, depth+1)
				continue
			}
			if c != item.FirstChild() {
				r.buf.WriteString("\n")
			}
			r.block(c, depth)
		}
	}
}

type lineNode interface {
	Lines() *text.Segments
}

func (r *renderer) code(n lineNode) {
	r.buf.WriteString("```\n")
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.buf.Write(seg.Value(r.src))
	}
	r.buf.WriteString("```")
}

func (r *renderer) inlines(parent ast.Node) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(c)
	}
}

func (r *renderer) inline(n ast.Node) {
	switch node := n.(type) {
	case *ast.Text:
		r.buf.Write(node.Segment.Value(r.src))
		if node.SoftLineBreak() || node.HardLineBreak() {
			r.buf.WriteString("\n")
		}
	case *ast.String:
		r.buf.Write(node.Value)
	case *ast.Emphasis:
		mark := "_"
		if node.Level >= 2 {
			mark = "*"
		}
		r.buf.WriteString(mark)
		r.inlines(node)
		r.buf.WriteString(mark)
	case *extast.Strikethrough:
		r.buf.WriteString("~")
		r.inlines(node)
		r.buf.WriteString("~")
	case *ast.CodeSpan:
		r.buf.WriteString("`")
		r.inlines(node)
		r.buf.WriteString("`")
	case *ast.Link:
		r.link(node, string(node.Destination))
	case *ast.Image:
		r.link(node, string(node.Destination))
	case *ast.AutoLink:
		r.buf.Write(node.URL(r.src))
	case *ast.RawHTML:
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			r.buf.Write(seg.Value(r.src))
		}
	default:
		r.inlines(n)
	}
}

func (r *renderer) link(n ast.Node, dest string) {
	start := r.buf.Len()
	r.inlines(n)
	label := r.buf.String()[start:]
	if dest == "" || label == dest {
		return
	}
	if label == "" {
		r.buf.WriteString(dest)
		return
	}
	r.buf.WriteString(" (" + dest + ")")
}

// splitLong breaks s into pieces of at most max runes, cutting at sentence
// ends first, then at whitespace, then anywhere.
func splitLong(s string, max int) []string {
	var out []string
	for utf8.RuneCountInString(s) > max {
		cut := cutPoint(s, max)
		piece := strings.TrimSpace(s[:cut])
		if piece != "" {
			out = append(out, piece)
		}
		s = strings.TrimLeftFunc(s[cut:], unicode.IsSpace)
	}
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// cutPoint returns a byte offset into s such that s[:offset] holds at most
// max runes.
func cutPoint(s string, max int) int {
	limit := len(s)
	count := 0
	for i := range s {
		if count == max {
			limit = i
			break
		}
		count++
	}
	window := s[:limit]

	sentence, space := -1, -1
	for i, r := range window {
		if unicode.IsSpace(r) {
			space = i
			if r == '\n' || (i > 0 && strings.ContainsRune(".!?", rune(window[i-1]))) {
				sentence = i
			}
		}
	}
	switch {
	case sentence > 0:
		return sentence
	case space > 0:
		return space
	default:
		return limit
	}
}
