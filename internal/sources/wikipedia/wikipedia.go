// Package wikipedia implements the encyclopedia provider on top of the
// MediaWiki opensearch API and article HTML.
package wikipedia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

const maxPageBytes = 8 << 20

// Classes whose subtrees are dropped from article text.
var noiseClasses = []string{"infobox", "navbox", "reference", "mw-editsection"}

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
	return sources.Info{Name: "wikipedia", Display: "Wikipedia", Noun: "articles", Origin: evidence.OriginWikipedia}
}

// Search calls opensearch, which answers [query, titles, descriptions, urls].
func (c *Client) Search(ctx context.Context, query string, limit int) ([]sources.SearchResult, error) {
	params := url.Values{
		"action": {"opensearch"},
		"search": {query},
		"limit":  {strconv.Itoa(limit)},
		"format": {"json"},
	}
	body, err := c.get(ctx, c.baseURL+"/w/api.php?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var raw []json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "decoding opensearch response: %v", err)
	}
	if len(raw) < 4 {
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "opensearch response has %d parts, want 4", len(raw))
	}
	var titles, urls []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "decoding titles: %v", err)
	}
	if err := json.Unmarshal(raw[3], &urls); err != nil {
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "decoding urls: %v", err)
	}
	results := make([]sources.SearchResult, 0, len(titles))
	for i := 0; i < len(titles) && i < len(urls); i++ {
		results = append(results, sources.SearchResult{Title: titles[i], URL: urls[i]})
	}
	return results, nil
}

// Fetch downloads an article and extracts the heading and body paragraphs.
func (c *Client) Fetch(ctx context.Context, r sources.SearchResult) (sources.Document, error) {
	body, err := c.get(ctx, r.URL)
	if err != nil {
		return sources.Document{}, err
	}
	defer body.Close()

	doc, err := html.Parse(io.LimitReader(body, maxPageBytes))
	if err != nil {
		return sources.Document{}, apperrors.Newf(apperrors.ErrProvider, 0, "parsing %s: %v", r.URL, err)
	}
	title, content, ok := extract(doc)
	if !ok {
		return sources.Document{}, apperrors.Newf(apperrors.ErrProvider, 0, "%s: no article heading", r.URL)
	}
	return sources.Document{Title: title, URL: r.URL, Content: content}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
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
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.Newf(apperrors.ErrProvider, 0, "GET %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// extract finds h1#firstHeading and the paragraphs under
// div#mw-content-text, skipping boxes, references and edit links.
func extract(doc *html.Node) (title, content string, ok bool) {
	heading := find(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.H1 && attr(n, "id") == "firstHeading"
	})
	if heading == nil {
		return "", "", false
	}
	title = strings.TrimSpace(text(heading))

	main := find(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && attr(n, "id") == "mw-content-text"
	})
	if main == nil {
		return title, "", true
	}
	var paragraphs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isNoise(n) {
			return
		}
		if n.DataAtom == atom.P {
			if p := strings.TrimSpace(text(n)); p != "" {
				paragraphs = append(paragraphs, p)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(main)
	return title, strings.Join(paragraphs, "\n\n"), true
}

func isNoise(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Table, atom.Div, atom.Sup, atom.Span:
	default:
		return false
	}
	return slices.ContainsFunc(strings.Fields(attr(n, "class")), func(c string) bool {
		return slices.Contains(noiseClasses, c)
	})
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// text concatenates the text nodes under n, skipping noise subtrees.
func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isNoise(n) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var _ sources.Provider = (*Client)(nil)
