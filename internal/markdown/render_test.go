package markdown

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRenderBasicMarkdown(t *testing.T) {
	r := New("github")

	out := r.Render("Hello **world**")
	if !strings.Contains(out.HTML, "<strong>world</strong>") {
		t.Fatalf("bold not rendered: %s", out.HTML)
	}
	if len(out.CodeBlocks) != 0 {
		t.Fatalf("unexpected code blocks: %v", out.CodeBlocks)
	}
}

func TestRenderCodeBlockContainer(t *testing.T) {
	r := New("github")

	out := r.Render("```go\nfmt.Println(\"hi\")\n```")
	if !strings.Contains(out.HTML, `class="code-block-container" data-code-index="0"`) {
		t.Fatalf("missing container: %s", out.HTML)
	}
	if !strings.Contains(out.HTML, `class="copy-code-button"`) {
		t.Fatalf("missing copy button: %s", out.HTML)
	}
	if len(out.CodeBlocks) != 1 || out.CodeBlocks[0] != `fmt.Println("hi")` {
		t.Fatalf("code blocks = %v", out.CodeBlocks)
	}
}

func TestRenderIndexesBlocksInOrder(t *testing.T) {
	r := New("github")

	out := r.Render("```\nfirst\n```\n\ntext\n\n```\nsecond\n```")
	if len(out.CodeBlocks) != 2 {
		t.Fatalf("want 2 blocks, got %v", out.CodeBlocks)
	}
	if out.CodeBlocks[0] != "first" || out.CodeBlocks[1] != "second" {
		t.Fatalf("blocks out of order: %v", out.CodeBlocks)
	}
	if !strings.Contains(out.HTML, `data-code-index="1"`) {
		t.Fatalf("second index missing: %s", out.HTML)
	}
}

func TestRenderExternalLinkAttributes(t *testing.T) {
	r := New("github")

	out := r.Render("see [docs](https://example.com/page)")
	for _, want := range []string{
		`href="https://example.com/page"`,
		`target="_blank"`,
		`rel="noopener noreferrer"`,
		`class="external-link"`,
	} {
		if !strings.Contains(out.HTML, want) {
			t.Fatalf("missing %s in %s", want, out.HTML)
		}
	}
}

func TestRenderRelativeLinkUntouched(t *testing.T) {
	r := New("github")

	out := r.Render("see [here](/local/path)")
	if strings.Contains(out.HTML, "external-link") {
		t.Fatalf("relative link marked external: %s", out.HTML)
	}
	if !strings.Contains(out.HTML, `href="/local/path"`) {
		t.Fatalf("relative href missing: %s", out.HTML)
	}
}

func TestRenderSkipsRawHTML(t *testing.T) {
	r := New("github")

	out := r.Render(`before <script>alert(1)</script> after`)
	if strings.Contains(out.HTML, "<script>") {
		t.Fatalf("raw HTML leaked: %s", out.HTML)
	}
}

func TestRenderNeverPanics(t *testing.T) {
	r := New("github")

	inputs := []string{
		"",
		"plain",
		strings.Repeat("[", 2000),
		"```" + strings.Repeat("`", 100),
		"[a](" + strings.Repeat("(", 500) + ")",
		string([]byte{0xff, 0xfe, 0x00}),
	}
	for _, in := range inputs {
		out := r.Render(in)
		_ = out.HTML
	}
}

func TestRenderUnknownStyleFallsBack(t *testing.T) {
	r := New("no-such-style")
	out := r.Render("```go\npackage main\n```")
	if out.HTML == "" {
		t.Fatal("empty output with fallback style")
	}
}

func newTestCopier(write func(string) error) *Copier {
	c := NewCopier()
	c.write = write
	c.delay = 10 * time.Millisecond
	return c
}

func TestCopierSuccessThenRevert(t *testing.T) {
	c := newTestCopier(func(string) error { return nil })

	reverted := make(chan CopyState, 4)
	c.OnStateChange(func(s CopyState) { reverted <- s })

	if err := c.Copy("text"); err != nil {
		t.Fatalf("Copy err: %v", err)
	}
	if got := <-reverted; got != CopySucceeded {
		t.Fatalf("state after copy = %v", got)
	}
	if got := <-reverted; got != CopyIdle {
		t.Fatalf("state after revert = %v", got)
	}
	if c.State() != CopyIdle {
		t.Fatalf("State() = %v after revert", c.State())
	}
}

func TestCopierFailureState(t *testing.T) {
	c := newTestCopier(func(string) error { return errors.New("no clipboard") })

	if err := c.Copy("text"); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != CopyFailed {
		t.Fatalf("State() = %v, want CopyFailed", c.State())
	}
}

func TestCopierRestartsRevertWindow(t *testing.T) {
	c := newTestCopier(func(string) error { return nil })
	c.delay = 50 * time.Millisecond

	if err := c.Copy("a"); err != nil {
		t.Fatalf("Copy err: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := c.Copy("b"); err != nil {
		t.Fatalf("Copy err: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	// First window has elapsed but the second copy restarted it.
	if c.State() != CopySucceeded {
		t.Fatalf("State() = %v, want CopySucceeded", c.State())
	}
}
