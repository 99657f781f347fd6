package feed

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

// ErrUnexpectedPage is returned when the page does not contain the calls
// table. Such a page must not be mistaken for an empty feed.
var ErrUnexpectedPage = errors.New("feed page has no calls table")

// Markers around the calls table in the feed's page template.
const (
	contentStart = "<!--maincontent-->"
	contentEnd   = "<!-- Start of HTML Footer -->"
)

// Page is the parse result of one feed page.
type Page struct {
	Rows    []domain.RawRow
	Dropped int // rows discarded for having the wrong cell count
}

// ParsePage extracts the call rows from the feed page. The first table row
// is the header and is skipped. Cell text is trimmed and non-breaking spaces
// removed.
func ParsePage(page []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(mainContent(page)))
	if err != nil {
		return Page{}, fmt.Errorf("parse feed page: %w", err)
	}

	rows := doc.Find("tr")
	if rows.Length() == 0 {
		return Page{}, ErrUnexpectedPage
	}

	var out Page
	rows.Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return cleanCell(td.Text())
		})
		row, ok := domain.RowFromCells(cells)
		if !ok {
			out.Dropped++
			return
		}
		out.Rows = append(out.Rows, row)
	})
	return out, nil
}

// mainContent narrows the page to the section between the template markers
// when both are present.
func mainContent(page []byte) []byte {
	start := bytes.Index(page, []byte(contentStart))
	end := bytes.Index(page, []byte(contentEnd))
	if start < 0 || end < 0 || end <= start {
		return page
	}
	return asTable(page[start+len(contentStart) : end])
}

// asTable wraps a fragment in a table element when its rows appear before
// any opening table tag, as happens when the template opens the calls table
// ahead of the start marker. An HTML parser drops bare tr elements.
func asTable(fragment []byte) []byte {
	lower := bytes.ToLower(fragment)
	tr := bytes.Index(lower, []byte("<tr"))
	if tr < 0 {
		return fragment
	}
	if table := bytes.Index(lower, []byte("<table")); table >= 0 && table < tr {
		return fragment
	}
	wrapped := make([]byte, 0, len(fragment)+len("<table></table>"))
	wrapped = append(wrapped, "<table>"...)
	wrapped = append(wrapped, fragment...)
	return append(wrapped, "</table>"...)
}

func cleanCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", ""))
}
