package ingestion

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
)

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre"

// ExtractTranscriptText turns an HTML transcript page into plain text. Readability strips
// navigation and boilerplate; block elements are then joined with blank lines so the
// paragraph breaks the chunker cuts on and the Q&A markers the parser looks for survive.
func ExtractTranscriptText(html string) (string, error) {
	doc, err := readability.NewDocument(html)
	if err != nil {
		return "", fmt.Errorf("failed to parse transcript page: %w", err)
	}

	content, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Content()))
	if err != nil {
		return "", fmt.Errorf("failed to parse transcript content: %w", err)
	}

	var blocks []string
	content.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks (p inside li/blockquote) are emitted by the innermost match.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := collapseSpaces(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		text := collapseSpaces(content.Text())
		if text == "" {
			return "", fmt.Errorf("transcript page has no readable text")
		}
		return text, nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
