// Package wiki resolves the S&P 500 constituent list from Wikipedia.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"equity-monitor/internal/domain"
)

// Default configuration values.
const (
	DefaultURL       = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; equity-monitor/1.0)"
)

// ErrNoTable is returned when the page has no constituents table.
var ErrNoTable = errors.New("wiki: constituents table not found")

// Column headers of the constituents table.
const (
	colSymbol      = "Symbol"
	colSecurity    = "Security"
	colSector      = "GICS Sector"
	colSubIndustry = "GICS Sub-Industry"
)

// UniverseSource implements ingestion.UniverseSource.
type UniverseSource struct {
	url       string
	userAgent string
	client    *http.Client
}

// Option configures UniverseSource.
type Option func(*UniverseSource)

// WithURL sets the page URL.
func WithURL(u string) Option {
	return func(s *UniverseSource) {
		s.url = u
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *UniverseSource) {
		s.client = client
	}
}

// NewUniverseSource creates a new UniverseSource.
func NewUniverseSource(opts ...Option) *UniverseSource {
	s := &UniverseSource{
		url:       DefaultURL,
		userAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Universe downloads the page and parses the first table carrying the
// constituent columns. Ticker dots become dashes (BRK.B -> BRK-B) to match
// the price provider's symbology.
func (s *UniverseSource) Universe(ctx context.Context) ([]domain.UniverseEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	return Parse(resp.Body)
}

// Parse extracts constituents from an HTML document.
func Parse(r io.Reader) ([]domain.UniverseEntry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	for _, table := range findAll(doc, atom.Table) {
		rows := findAll(table, atom.Tr)
		if len(rows) == 0 {
			continue
		}
		cols := columnIndex(cells(rows[0]))
		if !hasColumns(cols, colSymbol, colSecurity, colSector, colSubIndustry) {
			continue
		}

		var entries []domain.UniverseEntry
		for _, tr := range rows[1:] {
			values := cells(tr)
			symbol := cell(values, cols[colSymbol])
			if symbol == "" {
				continue
			}
			entries = append(entries, domain.UniverseEntry{
				Instrument:  strings.ReplaceAll(symbol, ".", "-"),
				DisplayName: cell(values, cols[colSecurity]),
				Sector:      cell(values, cols[colSector]),
				SubIndustry: cell(values, cols[colSubIndustry]),
			})
		}
		return entries, nil
	}
	return nil, ErrNoTable
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// cells returns the trimmed text of the th/td children of a row.
func cells(tr *html.Node) []string {
	var out []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
			out = append(out, strings.Join(strings.Fields(text(c)), " "))
		}
	}
	return out
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		// citation markers like [1]
		if c.Type == html.ElementNode && c.DataAtom == atom.Sup {
			continue
		}
		sb.WriteString(text(c))
	}
	return sb.String()
}

func columnIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

func hasColumns(idx map[string]int, names ...string) bool {
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			return false
		}
	}
	return true
}

func cell(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}
