package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-monitor/internal/domain"
)

const page = `<!DOCTYPE html><html><body>
<table class="infobox"><tr><th>Founded</th><td>1957</td></tr></table>
<table class="wikitable sortable" id="constituents">
<tbody>
<tr><th>Symbol</th><th>Security</th><th>GICS Sector</th><th>GICS Sub-Industry</th><th>Headquarters Location</th></tr>
<tr><td><a href="#">MMM</a></td><td><a href="#">3M</a></td><td>Industrials</td><td>Industrial Conglomerates</td><td>Saint Paul, Minnesota</td></tr>
<tr><td><a href="#">BRK.B</a></td><td>Berkshire Hathaway<sup>[5]</sup></td><td>Financials</td><td>Multi-Sector Holdings</td><td>Omaha, Nebraska</td></tr>
<tr><td></td><td>Blank row</td><td></td><td></td><td></td></tr>
</tbody></table>
<table class="wikitable" id="changes"><tr><th>Date</th><th>Added</th></tr></table>
</body></html>`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, []domain.UniverseEntry{
		{Instrument: "MMM", DisplayName: "3M", Sector: "Industrials", SubIndustry: "Industrial Conglomerates"},
		{Instrument: "BRK-B", DisplayName: "Berkshire Hathaway", Sector: "Financials", SubIndustry: "Multi-Sector Holdings"},
	}, entries)
}

func TestParse_NoTable(t *testing.T) {
	_, err := Parse(strings.NewReader(`<html><body><p>maintenance</p></body></html>`))
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestUniverseSource_Universe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	entries, err := NewUniverseSource(WithURL(server.URL)).Universe(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUniverseSource_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewUniverseSource(WithURL(server.URL)).Universe(context.Background())
	assert.Error(t, err)
}
