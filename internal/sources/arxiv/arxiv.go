// Package arxiv implements the paper-archive provider over the arXiv Atom
// query API. Documents are the paper abstract with its author line.
package arxiv

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func New(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Info() sources.Info {
	return sources.Info{Name: "arxiv", Display: "arXiv", Noun: "papers", Origin: evidence.OriginArxiv}
}

// Search maps a quoted query onto an all-fields phrase search and a loose
// query onto an OR of per-term searches.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]sources.SearchResult, error) {
	params := url.Values{
		"search_query": {searchQuery(query)},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(limit)},
	}
	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	results := make([]sources.SearchResult, 0, len(feed.Items))
	for _, item := range feed.Items {
		results = append(results, sources.SearchResult{Title: clean(item.Title), URL: absURL(item)})
	}
	return results, nil
}

// Fetch looks the paper up by id and returns its abstract.
func (c *Client) Fetch(ctx context.Context, r sources.SearchResult) (sources.Document, error) {
	id := paperID(r.URL)
	if id == "" {
		return sources.Document{}, apperrors.Newf(apperrors.ErrProvider, 0, "no arXiv id in %q", r.URL)
	}
	feed, err := c.query(ctx, url.Values{"id_list": {id}})
	if err != nil {
		return sources.Document{}, err
	}
	if len(feed.Items) == 0 {
		return sources.Document{}, apperrors.Newf(apperrors.ErrProvider, 0, "arXiv paper %s not found", id)
	}
	item := feed.Items[0]
	var authors []string
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	content := clean(item.Description)
	if len(authors) > 0 {
		content = "Authors: " + strings.Join(authors, ", ") + "\n\n" + content
	}
	return sources.Document{Title: clean(item.Title), URL: r.URL, Content: content}, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*gofeed.Feed, error) {
	rawURL := c.baseURL + "/api/query?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "building request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "GET %s: status %d", rawURL, resp.StatusCode)
	}
	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "parsing arXiv feed: %v", err)
	}
	return feed, nil
}

func searchQuery(query string) string {
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, `"`) && strings.HasSuffix(query, `"`) && len(query) > 1 {
		return "all:" + query
	}
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = "all:" + t
	}
	return strings.Join(terms, " OR ")
}

func absURL(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	return item.GUID
}

// paperID extracts "2101.00001v2" from an abs URL or an Atom entry id.
func paperID(u string) string {
	_, id, ok := strings.Cut(u, "/abs/")
	if !ok {
		return ""
	}
	return strings.Trim(id, "/")
}

// clean collapses the hard-wrapped whitespace arXiv puts in titles and
// abstracts.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ sources.Provider = (*Client)(nil)
