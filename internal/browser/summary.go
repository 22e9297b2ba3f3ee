package browser

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Summary describes what a page was showing, for structural-failure reports.
type Summary struct {
	URL    string
	Title  string
	Blades []string // Open blade titles, outermost first
}

func (s Summary) String() string {
	var sb strings.Builder
	sb.WriteString(s.URL)
	if s.Title != "" {
		sb.WriteString(" [")
		sb.WriteString(s.Title)
		sb.WriteString("]")
	}
	if len(s.Blades) > 0 {
		sb.WriteString(" blades: ")
		sb.WriteString(strings.Join(s.Blades, " > "))
	}
	return sb.String()
}

// SummarizeHTML extracts the document title and the text of every element
// matching bladeSelector.
func SummarizeHTML(html, bladeSelector string) (Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Title: cleanText(doc.Find("title").First().Text())}
	doc.Find(bladeSelector).Each(func(_ int, sel *goquery.Selection) {
		if text := cleanText(sel.Text()); text != "" {
			s.Blades = append(s.Blades, text)
		}
	})
	return s, nil
}

// Summarize captures a Summary of the page. Errors are swallowed into a
// partial summary; it is only used to enrich failure logs.
func Summarize(ctx context.Context, p Page, bladeSelector string) Summary {
	var s Summary
	html, err := p.HTML(ctx)
	if err == nil {
		s, _ = SummarizeHTML(html, bladeSelector)
	}
	if url, err := p.CurrentURL(ctx); err == nil {
		s.URL = url
	}
	return s
}

// cleanText normalizes whitespace in text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
