package sticker

import (
	"bytes"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var stickerHTMLPolicy = bluemonday.UGCPolicy()

// HTMLToText converts an HTML window sticker document to line-oriented
// text. The document is sanitised first (OEM sticker portals embed
// scripts and trackers), then flattened through markdown so headings and
// list items land on their own lines for the segmenter.
func HTMLToText(doc []byte) (string, error) {
	clean := stickerHTMLPolicy.SanitizeBytes(doc)

	md, err := htmltomarkdown.ConvertString(string(clean))
	if err != nil {
		// Degraded path: walk the DOM and collect raw text.
		return collectText(doc)
	}
	return stripMarkdown(md), nil
}

// stripMarkdown removes the markers the converter introduces, leaving one
// sticker item per line.
func stripMarkdown(md string) string {
	var out []string
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#>*- ")
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "_", " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// collectText walks an HTML tree and gathers visible text, one block per
// line.
func collectText(doc []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Noscript:
				return
			case atom.Br, atom.P, atom.Div, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4:
				sb.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return trimBlankLines(sb.String()), nil
}
