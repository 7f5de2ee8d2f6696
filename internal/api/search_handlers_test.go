package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep-server/internal/search"
)

func TestSearchBooks(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 1)

	resp := ts.api.Post("/api/v1/books", map[string]any{
		"books": []map[string]any{{
			"serial_number": 9780000000002,
			"title":         "The Left Hand of Darkness",
			"year":          1969,
			"fine_per_day":  "0.30",
			"publisher":     "Ace Books",
			"authors":       []string{"Ursula Le Guin"},
			"categories":    []string{"Science Fiction"},
			"total_amount":  1,
		}},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/books/search?q=dune")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decodeEnvelope[search.SearchResult](t, resp.Body.Bytes()).Data
	require.Len(t, res.Hits, 1)
	assert.Equal(t, search.DocumentID(duneSerial), res.Hits[0].ID)
	assert.Equal(t, "Dune", res.Hits[0].Title)

	res = decodeEnvelope[search.SearchResult](t, ts.api.Get("/api/v1/books/search?q=guin").Body.Bytes()).Data
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "The Left Hand of Darkness", res.Hits[0].Title)

	res = decodeEnvelope[search.SearchResult](t,
		ts.api.Get("/api/v1/books/search?max_year=1966").Body.Bytes()).Data
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Dune", res.Hits[0].Title)

	res = decodeEnvelope[search.SearchResult](t,
		ts.api.Get("/api/v1/books/search?sort_by=year&sort_order=desc").Body.Bytes()).Data
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 1969, res.Hits[0].Year)
}

func TestSearchBooks_AvailableOnly(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 1)
	ana := ts.createClient(t, "Ana Silva", 123456789)

	res := decodeEnvelope[search.SearchResult](t, ts.api.Get("/api/v1/books/search?available=true").Body.Bytes()).Data
	assert.Len(t, res.Hits, 1)

	receipt := ts.openRental(t, map[string]any{"client_id": ana.ID, "serial_number": duneSerial})

	res = decodeEnvelope[search.SearchResult](t, ts.api.Get("/api/v1/books/search?available=true").Body.Bytes()).Data
	assert.Empty(t, res.Hits)

	resp := ts.api.Post(fmt.Sprintf("/api/v1/rents/%d/reception", receipt.RentID), map[string]any{"condition": "As new"})
	require.Equal(t, http.StatusOK, resp.Code)

	res = decodeEnvelope[search.SearchResult](t, ts.api.Get("/api/v1/books/search?available=true").Body.Bytes()).Data
	assert.Len(t, res.Hits, 1)
}

func TestSearchBooks_Validation(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/books/search?min_year=2000&max_year=1990")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decodeEnvelope[any](t, resp.Body.Bytes()).Code)

	resp = ts.api.Get("/api/v1/books/search?sort_by=popularity")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReindexBooks(t *testing.T) {
	ts := setupTestServer(t, Options{})
	book := ts.createDune(t, 1)

	resp := ts.api.Patch(fmt.Sprintf("/api/v1/authors/%d", book.Authors[0].ID), map[string]any{"name": "F. Herbert"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Post("/api/v1/books/search/reindex")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decodeEnvelope[ReindexResponse](t, resp.Body.Bytes()).Data.Indexed)

	res := decodeEnvelope[search.SearchResult](t, ts.api.Get("/api/v1/books/search?q=herbert").Body.Bytes()).Data
	require.Len(t, res.Hits, 1)
	assert.Contains(t, res.Hits[0].Authors, "F. Herbert")
}

func TestSearchBooks_NotConfigured(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.services.Search = nil

	resp := ts.api.Get("/api/v1/books/search?q=dune")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "INTERNAL", decodeEnvelope[any](t, resp.Body.Bytes()).Code)
}
