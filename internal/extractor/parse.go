// Package extractor turns the volume page into a volume.Reading. The colly and
// headless subpackages fetch the page; this package holds the parsing shared
// by both and the static-to-headless fallback.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

var (
	// ErrUnexpectedStatus is returned when the page fetch does not succeed.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMarkupChanged is returned when the expected DOM nodes are absent.
	ErrMarkupChanged = errors.New("expected markup not found")
	// ErrTooFewValues is returned when the totals row has fewer values than fields.
	ErrTooFewValues = errors.New("too few volume values")
)

// Selectors locates the reading on the page.
type Selectors struct {
	Timestamp string `mapstructure:"timestamp"`
	Label     string `mapstructure:"label"`
	Table     string `mapstructure:"table"`
}

// DefaultSelectors matches the current markup of the CME volume page.
func DefaultSelectors() Selectors {
	return Selectors{
		Timestamp: ".timestamp .date",
		Label:     ".timestamp .type",
		Table:     ".main-table-wrapper table",
	}
}

// withDefaults fills empty selectors.
func (s Selectors) withDefaults() Selectors {
	def := DefaultSelectors()
	if s.Timestamp == "" {
		s.Timestamp = def.Timestamp
	}
	if s.Label == "" {
		s.Label = def.Label
	}
	if s.Table == "" {
		s.Table = def.Table
	}
	return s
}

// CellSelector matches the data cells of the totals table.
func (s Selectors) CellSelector() string {
	return s.withDefaults().Table + " td"
}

var (
	countPattern = regexp.MustCompile(`^[-+]?\d+$`)
	tokenPattern = regexp.MustCompile(`[-+]?\d{1,3}(?:,\d{3})+|[-+]?\d+`)
)

// ParseCount converts a comma-grouped digit string to an integer. Anything
// that is not a whole number yields nil.
func ParseCount(text string) *int64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if cleaned == "" || !countPattern.MatchString(cleaned) {
		return nil
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// NumericTokens returns the comma-grouped numbers found in text, in order.
func NumericTokens(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// ReadingFromCells builds a Reading from the first CountFields cells.
func ReadingFromCells(cells []string, label, updated *string) (volume.Reading, error) {
	if len(cells) < volume.CountFields {
		return volume.Reading{}, fmt.Errorf("%w: got %d, want %d", ErrTooFewValues, len(cells), volume.CountFields)
	}
	var counts [volume.CountFields]*int64
	for i := range counts {
		counts[i] = ParseCount(cells[i])
	}
	reading := volume.Reading{Label: label, LastUpdated: updated}
	reading.SetCounts(counts)
	return reading, nil
}

// ParseDocument extracts a Reading from static HTML, one field per table cell.
func ParseDocument(r io.Reader, sel Selectors) (volume.Reading, error) {
	doc, row, sel, err := locateRow(r, sel)
	if err != nil {
		return volume.Reading{}, err
	}
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return ReadingFromCells(cells, textOf(doc.Selection, sel.Label), textOf(doc.Selection, sel.Timestamp))
}

// ParseRendered extracts a Reading from a browser-rendered DOM. Each cell
// still maps to one field; a cell whose text carries markup or labels around
// a single number yields that number, and anything else is absent.
func ParseRendered(r io.Reader, sel Selectors) (volume.Reading, error) {
	doc, row, sel, err := locateRow(r, sel)
	if err != nil {
		return volume.Reading{}, err
	}
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, renderedCell(cell.Text()))
	})
	return ReadingFromCells(cells, textOf(doc.Selection, sel.Label), textOf(doc.Selection, sel.Timestamp))
}

// renderedCell reduces one cell's text to a count string, or "" when the
// cell does not hold exactly one number.
func renderedCell(text string) string {
	text = strings.TrimSpace(text)
	if ParseCount(text) != nil {
		return text
	}
	if tokens := NumericTokens(text); len(tokens) == 1 {
		return tokens[0]
	}
	return ""
}

func locateRow(r io.Reader, sel Selectors) (*goquery.Document, *goquery.Selection, Selectors, error) {
	sel = sel.withDefaults()
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, sel, fmt.Errorf("parse html: %w", err)
	}
	table := doc.Find(sel.Table).First()
	if table.Length() == 0 {
		return nil, nil, sel, fmt.Errorf("%w: table %q", ErrMarkupChanged, sel.Table)
	}
	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil, nil, sel, fmt.Errorf("%w: totals row", ErrMarkupChanged)
	}
	return doc, rows.Eq(1), sel, nil
}

// textOf returns the trimmed text of the first match, or nil when absent.
func textOf(root *goquery.Selection, selector string) *string {
	node := root.Find(selector).First()
	if node.Length() == 0 {
		return nil
	}
	return OptionalText(node.Text())
}

// OptionalText trims text and returns nil when nothing is left.
func OptionalText(text string) *string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	return &text
}
