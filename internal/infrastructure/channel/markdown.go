package channel

import (
	"bytes"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var mdParser = goldmark.New().Parser()

// ToTelegramHTML renders generated markdown as the HTML subset Telegram
// accepts (<b>, <i>, <code>, <pre>, <a>). Raw HTML in the input is escaped.
func ToTelegramHTML(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	src := []byte(markdown)
	doc := mdParser.Parse(text.NewReader(src))

	var buf bytes.Buffer
	r := &mdRenderer{src: src, html: true}
	r.children(&buf, doc)
	return strings.TrimRight(buf.String(), "\n")
}

// ToPlainText drops markdown markup and keeps the readable text. Messenger
// shows replies verbatim, so **bold** would reach the customer as asterisks.
func ToPlainText(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	src := []byte(markdown)
	doc := mdParser.Parse(text.NewReader(src))

	var buf bytes.Buffer
	r := &mdRenderer{src: src}
	r.children(&buf, doc)
	return strings.TrimRight(buf.String(), "\n")
}

// mdRenderer walks the goldmark AST. With html unset it emits plain text.
type mdRenderer struct {
	src  []byte
	html bool
}

func (r *mdRenderer) children(w *bytes.Buffer, node ast.Node) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		r.node(w, child)
	}
}

func (r *mdRenderer) tag(w *bytes.Buffer, s string) {
	if r.html {
		w.WriteString(s)
	}
}

func (r *mdRenderer) escape(s string) string {
	if r.html {
		return html.EscapeString(s)
	}
	return s
}

func (r *mdRenderer) node(w *bytes.Buffer, node ast.Node) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.children(w, n)
		w.WriteString("\n\n")

	case *ast.Heading:
		r.tag(w, "<b>")
		r.children(w, n)
		r.tag(w, "</b>")
		w.WriteString("\n\n")

	case *ast.ThematicBreak:
		w.WriteString("———\n\n")

	case *ast.Blockquote:
		var inner bytes.Buffer
		r.children(&inner, n)
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			w.WriteString("▎")
			w.WriteString(line)
			w.WriteString("\n")
		}
		w.WriteString("\n")

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		r.tag(w, "<pre>")
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.WriteString(r.escape(string(seg.Value(r.src))))
		}
		r.tag(w, "</pre>")
		w.WriteString("\n\n")

	case *ast.List:
		r.list(w, n)

	case *ast.Text:
		w.WriteString(r.escape(string(n.Segment.Value(r.src))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.WriteString("\n")
		}

	case *ast.String:
		w.WriteString(r.escape(string(n.Value)))

	case *ast.CodeSpan:
		r.tag(w, "<code>")
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				w.WriteString(r.escape(string(t.Segment.Value(r.src))))
			}
		}
		r.tag(w, "</code>")

	case *ast.Emphasis:
		open, closing := "<i>", "</i>"
		if n.Level == 2 {
			open, closing = "<b>", "</b>"
		}
		r.tag(w, open)
		r.children(w, n)
		r.tag(w, closing)

	case *ast.Link:
		dest := string(n.Destination)
		if !r.html {
			r.children(w, n)
			w.WriteString(" (" + dest + ")")
			return
		}
		w.WriteString(`<a href="` + html.EscapeString(dest) + `">`)
		r.children(w, n)
		w.WriteString("</a>")

	case *ast.AutoLink:
		url := string(n.URL(r.src))
		if !r.html {
			w.WriteString(url)
			return
		}
		w.WriteString(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(url) + "</a>")

	case *ast.Image:
		// 渠道不支持内联图片, 只保留链接
		w.WriteString(r.escape(string(n.Destination)))

	case *ast.RawHTML:
		segs := n.Segments
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			w.WriteString(r.escape(string(seg.Value(r.src))))
		}

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.WriteString(r.escape(string(seg.Value(r.src))))
		}
		w.WriteString("\n")

	default:
		r.children(w, node)
	}
}

func (r *mdRenderer) list(w *bytes.Buffer, list *ast.List) {
	idx := list.Start
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		if list.IsOrdered() {
			w.WriteString(strconv.Itoa(idx) + ". ")
			idx++
		} else {
			w.WriteString("• ")
		}
		var inner bytes.Buffer
		r.children(&inner, item)
		lines := strings.Split(strings.TrimRight(inner.String(), "\n"), "\n")
		w.WriteString(strings.Join(lines, "\n  "))
		w.WriteString("\n")
	}
	w.WriteString("\n")
}
