package arxiv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/2101.00001v1</id>
    <updated>2021-01-01T00:00:00Z</updated>
    <published>2021-01-01T00:00:00Z</published>
    <title>Fairness in Machine
      Learning</title>
    <summary>  We survey fairness
      definitions for machine learning.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2101.00001v1" rel="alternate" type="text/html"/>
  </entry>
</feed>`

func TestSearchAndFetch(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		if q := r.URL.Query().Get("search_query"); q != "" {
			queries = append(queries, q)
		}
		if id := r.URL.Query().Get("id_list"); id != "" {
			assert.Equal(t, "2101.00001v1", id)
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	c := New(srv.URL, "ua", time.Second)
	results, err := c.Search(context.Background(), `"machine learning fairness"`, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Fairness in Machine Learning", results[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/2101.00001v1", results[0].URL)

	_, err = c.Search(context.Background(), "machine fairness", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{`all:"machine learning fairness"`, "all:machine OR all:fairness"}, queries)

	doc, err := c.Fetch(context.Background(), results[0])
	require.NoError(t, err)
	assert.Equal(t, "Fairness in Machine Learning", doc.Title)
	assert.Equal(t, "Authors: Ada Lovelace, Alan Turing\n\nWe survey fairness definitions for machine learning.", doc.Content)
}

func TestFetchRejectsForeignURL(t *testing.T) {
	c := New("http://unused", "ua", time.Second)
	_, err := c.Fetch(context.Background(), sources.SearchResult{URL: "https://example.com/paper"})
	assert.True(t, errors.Is(err, apperrors.ErrProvider))
}

func TestSearchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	_, err := New(srv.URL, "ua", time.Second).Search(context.Background(), "x", 1)
	assert.True(t, errors.Is(err, apperrors.ErrProvider))
}
