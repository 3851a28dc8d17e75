// ABOUTME: Terminal rendering helpers: markdown message text to plain lines, image data URLs
// ABOUTME: Markdown is parsed with goldmark and flattened; images are summarized, never drawn

package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// maxImageSize bounds files accepted by /image and /avatar.
const maxImageSize = 5 << 20

var markdown = goldmark.New()

// renderMarkdown flattens markdown into plain text for the terminal:
// emphasis markers are dropped, links keep their target, list items get a
// bullet, and blocks are separated by newlines.
func renderMarkdown(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.HardLineBreak() || node.SoftLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(source))
			}
		case *ast.Link:
			if !entering {
				fmt.Fprintf(&b, " (%s)", node.Destination)
			}
		case *ast.Image:
			if entering {
				fmt.Fprintf(&b, "[image %s]", node.Destination)
				return ast.WalkSkipChildren, nil
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.WriteString("    ")
					b.Write(seg.Value(source))
				}
				return ast.WalkSkipChildren, nil
			}
			separateBlock(&b, n)
		case *ast.ListItem:
			if entering {
				b.WriteString("• ")
			} else {
				separateBlock(&b, n)
			}
		case *ast.Paragraph, *ast.TextBlock, *ast.Heading, *ast.Blockquote, *ast.List:
			if !entering {
				separateBlock(&b, n)
			}
		case *ast.ThematicBreak:
			if entering {
				b.WriteString("---")
				separateBlock(&b, n)
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimRight(b.String(), "\n")
}

// separateBlock ends a block with a newline unless it is the last one.
func separateBlock(b *strings.Builder, n ast.Node) {
	if n.NextSibling() == nil {
		return
	}
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}

// indentContinuation indents every line after the first so multi-line
// messages line up under the sender.
func indentContinuation(s string) string {
	return strings.ReplaceAll(s, "\n", "\n    ")
}

// describeImage summarizes an image reference without printing the payload.
func describeImage(ref string) string {
	if !strings.HasPrefix(ref, "data:") {
		return "image " + ref
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return "image"
	}
	mime, _, _ := strings.Cut(meta, ";")
	size := base64.StdEncoding.DecodedLen(len(payload))
	return fmt.Sprintf("%s, %s", mime, humanSize(size))
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// imageDataURL reads an image file and encodes it as a data URL, the form
// the backend accepts for images and profile pictures.
func imageDataURL(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxImageSize {
		return "", fmt.Errorf("image %s is larger than %s", filepath.Base(path), humanSize(maxImageSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", filepath.Base(path), mime)
	}

	var b bytes.Buffer
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String(), nil
}
