package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestRunCountsStatusAndKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "BM25 ranking" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":"error","kind":"RateLimited"}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	s := run(options{
		baseURL:     srv.URL,
		mode:        "search",
		concurrency: 2,
		duration:    100 * time.Millisecond,
		topics:      []string{"coral", "BM25 ranking"},
	})

	assert.Positive(t, s.total.Load())
	assert.Positive(t, s.codes[http.StatusOK])
	assert.Positive(t, s.kinds["RateLimited"])
	assert.LessOrEqual(t, s.kinds["RateLimited"], s.codes[http.StatusTooManyRequests])

	var buf bytes.Buffer
	assert.True(t, report(&buf, s, 100*time.Millisecond))
	assert.Contains(t, buf.String(), "RateLimited:")
}
