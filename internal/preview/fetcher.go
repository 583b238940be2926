// Package preview fetches destination pages and extracts the metadata shown
// on interstitial pages: title, description and a preview image.
package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Data is the extracted page metadata. Open Graph tags win over the plain
// <title> and meta description when both are present.
type Data struct {
	Title       string
	Description string
	Image       string
}

// Fetcher downloads and parses destination pages.
type Fetcher struct {
	httpClient *http.Client
	maxBody    int64
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxBody:    1 << 20, // pages past 1 MiB rarely carry metadata in the tail
	}
}

// Fetch retrieves the page at target and extracts its metadata.
func (f *Fetcher) Fetch(ctx context.Context, target string) (Data, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Data{}, fmt.Errorf("failed to build preview request: %w", err)
	}
	req.Header.Set("User-Agent", "URLBriefr-Preview/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Data{}, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Data{}, fmt.Errorf("preview fetch for %s returned status %d", target, resp.StatusCode)
	}

	return Parse(io.LimitReader(resp.Body, f.maxBody))
}

// Parse extracts preview metadata from an HTML document.
func Parse(r io.Reader) (Data, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Data{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var data Data
	var ogTitle, ogDescription string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && data.Title == "" {
					data.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var name, property, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "name":
						name = attr.Val
					case "property":
						property = attr.Val
					case "content":
						content = attr.Val
					}
				}
				switch {
				case property == "og:title":
					ogTitle = content
				case property == "og:description":
					ogDescription = content
				case property == "og:image":
					data.Image = content
				case name == "description" && data.Description == "":
					data.Description = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if ogTitle != "" {
		data.Title = ogTitle
	}
	if ogDescription != "" {
		data.Description = ogDescription
	}
	return data, nil
}
