// Package markdown converts chat message text to sanitized HTML: fenced code
// blocks get syntax highlighting and a copy control, external links open in a
// new browsing context without an opener reference.
package markdown

import (
	"fmt"
	"html"
	"io"
	"log"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Renderer turns Markdown into HTML. It is stateless between calls and safe
// for reuse.
type Renderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// Rendered is the outcome of one Render call. CodeBlocks holds the plain
// text of each fenced block in document order, indexed by the
// data-code-index attribute emitted into the HTML.
type Rendered struct {
	HTML       string
	CodeBlocks []string
}

// New builds a renderer with the given chroma style name; unknown names fall
// back to the default style.
func New(styleName string) *Renderer {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Renderer{
		style:     style,
		formatter: chromahtml.New(chromahtml.TabWidth(4)),
	}
}

// Render converts text to HTML. It never fails outward: any parser or
// highlighter panic falls back to the HTML-escaped input.
func (r *Renderer) Render(text string) (out Rendered) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[markdown] render panic: %v", rec)
			out = Rendered{HTML: "<p>" + html.EscapeString(text) + "</p>"}
		}
	}()

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	doc := p.Parse([]byte(text))

	state := &renderState{renderer: r}
	opts := mdhtml.RendererOptions{
		Flags:          mdhtml.CommonFlags | mdhtml.SkipHTML,
		RenderNodeHook: state.renderNode,
	}

	rendered := markdown.Render(doc, mdhtml.NewRenderer(opts))
	return Rendered{
		HTML:       strings.TrimSpace(string(rendered)),
		CodeBlocks: state.codeBlocks,
	}
}

// renderState accumulates per-call output such as the code block index.
type renderState struct {
	renderer   *Renderer
	codeBlocks []string
}

// renderNode overrides code blocks and links; everything else falls through
// to the stock HTML renderer.
func (s *renderState) renderNode(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	switch n := node.(type) {
	case *ast.CodeBlock:
		s.writeCodeBlock(w, n)
		return ast.GoToNext, true
	case *ast.Link:
		if dest := string(n.Destination); isExternalLink(dest) {
			s.writeExternalLink(w, n, entering)
			return ast.GoToNext, true
		}
	}
	return ast.GoToNext, false
}

// writeCodeBlock emits a highlighted block wrapped in a container exposing
// the copy-to-clipboard control.
func (s *renderState) writeCodeBlock(w io.Writer, block *ast.CodeBlock) {
	code := strings.TrimRight(string(block.Literal), "\n")
	lang := strings.TrimSpace(string(block.Info))
	index := len(s.codeBlocks)
	s.codeBlocks = append(s.codeBlocks, code)

	fmt.Fprintf(w, "<div class=\"code-block-container\" data-code-index=\"%d\">", index)
	if err := s.renderer.highlight(w, code, lang); err != nil {
		// Highlighting failed; keep the block readable as plain text.
		fmt.Fprintf(w, "<pre><code>%s</code></pre>", html.EscapeString(code))
	}
	fmt.Fprintf(w,
		"<button class=\"copy-code-button\" type=\"button\" data-code-index=\"%d\" title=\"Copy code\">⧉</button>",
		index)
	io.WriteString(w, "</div>\n")
}

// highlight writes code through chroma. The declared language wins when
// recognized, then content analysis, then the plain-text fallback lexer.
func (r *Renderer) highlight(w io.Writer, code, lang string) error {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	return r.formatter.Format(w, r.style, iterator)
}

// writeExternalLink opens absolute http(s) links in a new browsing context
// with no opener reference and flags them visually.
func (s *renderState) writeExternalLink(w io.Writer, link *ast.Link, entering bool) {
	if !entering {
		io.WriteString(w, "</a>")
		return
	}

	fmt.Fprintf(w, "<a href=\"%s\"", html.EscapeString(string(link.Destination)))
	if len(link.Title) > 0 {
		fmt.Fprintf(w, " title=\"%s\"", html.EscapeString(string(link.Title)))
	}
	io.WriteString(w, " target=\"_blank\" rel=\"noopener noreferrer\" class=\"external-link\">")
}

func isExternalLink(dest string) bool {
	return strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://")
}
