package service

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"questions/internal/models"
)

// textBlock is one structural piece of an imported document
type textBlock struct {
	level string
	text  string
}

var markdown = goldmark.New()

// parseDocument splits a markdown document into sections, sub-sections and
// articles. Level one headings open sections, deeper headings open
// sub-sections and every other top level block becomes an article.
func parseDocument(doc string) []textBlock {
	source := []byte(doc)
	root := markdown.Parser().Parse(text.NewReader(source))

	var blocks []textBlock
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		content := strings.TrimSpace(plainText(n, source))
		if content == "" {
			continue
		}

		level := models.LevelArticle
		if h, ok := n.(*ast.Heading); ok {
			level = models.LevelSubSection
			if h.Level == 1 {
				level = models.LevelSection
			}
		}
		blocks = append(blocks, textBlock{level: level, text: content})
	}
	return blocks
}

// plainText flattens a block into text. Paragraphs of a container, such as
// list items, end up on separate lines.
func plainText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := node.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				return ast.WalkSkipChildren, nil
			}
		case *ast.Paragraph, *ast.TextBlock:
			if !entering && node.Parent() != nil && node.Parent().Kind() != ast.KindDocument {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// draftsFromDocument builds the draft questions of a document in order
func draftsFromDocument(componentID, organizationID int64, locale string, blocks []textBlock) []*models.Question {
	drafts := make([]*models.Question, 0, len(blocks))
	for i, b := range blocks {
		position := i + 1
		title := b.text
		if b.level == models.LevelArticle {
			title = strconv.Itoa(position)
		}
		drafts = append(drafts, &models.Question{
			ComponentID:            componentID,
			Title:                  models.Translations{locale: title},
			Body:                   models.Translations{locale: b.text},
			Position:               &position,
			ParticipatoryTextLevel: b.level,
			Coauthorships: []models.Coauthorship{
				{AuthorType: models.AuthorOrganization, AuthorID: organizationID},
			},
		})
	}
	return drafts
}
