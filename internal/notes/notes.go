// Package notes extracts a short release summary from a freshly fetched code
// tree, so the launcher can show what an update brought in.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// candidateFiles are checked in order; the first one present wins.
var candidateFiles = []string{"CHANGELOG.md", "README.md"}

// Summary is the extracted release summary.
type Summary struct {
	Source  string // file the summary came from, relative to the tree root
	Title   string // text of the first heading
	Excerpt string // text of the first paragraph after that heading
}

// Extract reads the first heading and paragraph from the tree's changelog,
// falling back to its readme. Returns nil with no error when the tree carries
// neither file; a missing summary is not a failure.
func Extract(tree string) (*Summary, error) {
	for _, name := range candidateFiles {
		path := filepath.Join(tree, name)
		body, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		s := extractSummary(body)
		if s == nil {
			continue
		}
		s.Source = name
		return s, nil
	}
	return nil, nil
}

func extractSummary(body []byte) *Summary {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var s Summary
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if s.Title == "" {
				s.Title = nodeText(node, body)
			}
			return gmast.WalkSkipChildren, nil
		case *gmast.Paragraph:
			if s.Title != "" && s.Excerpt == "" {
				s.Excerpt = nodeText(node, body)
				return gmast.WalkStop, nil
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})

	if s.Title == "" && s.Excerpt == "" {
		return nil
	}
	return &s
}

// nodeText concatenates the literal text segments beneath a block node.
func nodeText(n gmast.Node, body []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(child gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if t, ok := child.(*gmast.Text); ok {
			b.Write(t.Segment.Value(body))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
