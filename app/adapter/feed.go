package adapter

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/lysyi3m/content-comb/app/content"
)

var _ Adapter = (*FeedAdapter)(nil)

// FeedAdapter fetches RSS, Atom and JSON feeds with conditional GET.
type FeedAdapter struct {
	httpClient     *http.Client
	newParser      func() *gofeed.Parser
	userAgent      string
	defaultTimeout time.Duration
}

func NewFeedAdapter(httpClient *http.Client, userAgent string, defaultTimeout time.Duration) *FeedAdapter {
	return &FeedAdapter{
		httpClient:     httpClient,
		newParser:      gofeed.NewParser,
		userAgent:      userAgent,
		defaultTimeout: defaultTimeout,
	}
}

func (a *FeedAdapter) Fetch(ctx context.Context, req Request) (*Result, error) {
	data, header, notModified, err := a.fetchFeed(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NotModified:  notModified,
		ETag:         header.Get("ETag"),
		LastModified: header.Get("Last-Modified"),
	}
	if notModified {
		return result, nil
	}

	// gofeed parsers keep per-document state, so each fetch gets its own.
	parsed, err := a.newParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{SourceID: req.SourceID, Err: err}
	}

	result.Entries = make([]content.RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		result.Entries = append(result.Entries, a.toRawEntry(item, parsed.FeedType))
	}

	slog.Debug("Feed parsed", "source", req.SourceID, "entries", len(result.Entries), "format", parsed.FeedType)
	return result, nil
}

func (a *FeedAdapter) fetchFeed(ctx context.Context, req Request) ([]byte, http.Header, bool, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeoutOr(req, a.defaultTimeout))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, req.Endpoint, nil)
	if err != nil {
		return nil, nil, false, &TransportError{SourceID: req.SourceID, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("User-Agent", a.userAgent)
	if !req.Backfill {
		if req.ETag != "" {
			httpReq.Header.Set("If-None-Match", req.ETag)
		}
		if req.LastModified != "" {
			httpReq.Header.Set("If-Modified-Since", req.LastModified)
		}
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, false, &TransportError{SourceID: req.SourceID, Err: fmt.Errorf("failed to fetch feed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp.Header, true, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, false, &TransportError{
			SourceID:   req.SourceID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP error: %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, false, &TransportError{SourceID: req.SourceID, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return data, resp.Header, false, nil
}

func (a *FeedAdapter) toRawEntry(item *gofeed.Item, feedType string) content.RawEntry {
	entry := content.RawEntry{
		ExternalID: strings.TrimSpace(item.GUID),
		Title:      item.Title,
		Link:       item.Link,
		Summary:    item.Description,
		Body:       item.Content,
		Published:  cmp.Or(item.Published, item.Updated),
		Authors:    a.extractAuthors(item),
		Categories: item.Categories,
	}

	if item.PublishedParsed != nil {
		entry.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.PublishedAt = item.UpdatedParsed
	}

	// For RSS and Atom gofeed derives Item.Image from the first <img> of the
	// body, which would bypass image scoring. Only explicit fields count.
	if item.ITunesExt != nil && item.ITunesExt.Image != "" {
		entry.ImageURL = item.ITunesExt.Image
	} else if feedType == "json" && item.Image != nil {
		entry.ImageURL = item.Image.URL
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		converted := content.Enclosure{URL: enclosure.URL, Type: enclosure.Type}
		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				converted.Length = length
			}
		}
		entry.Enclosures = append(entry.Enclosures, converted)
	}

	entry.Media = extractMedia(item.Extensions)

	return entry
}

// extractMedia flattens media:content, media:thumbnail and media:group
// elements in document order.
func extractMedia(extensions ext.Extensions) []content.Enclosure {
	media, ok := extensions["media"]
	if !ok {
		return nil
	}

	var result []content.Enclosure
	var walk func(elements map[string][]ext.Extension)
	walk = func(elements map[string][]ext.Extension) {
		for _, element := range elements["content"] {
			result = append(result, mediaEnclosure(element))
		}
		for _, element := range elements["thumbnail"] {
			thumbnail := mediaEnclosure(element)
			if thumbnail.Type == "" {
				thumbnail.Type = "image"
			}
			result = append(result, thumbnail)
		}
		for _, group := range elements["group"] {
			walk(group.Children)
		}
	}
	walk(media)

	return result
}

func mediaEnclosure(element ext.Extension) content.Enclosure {
	enclosure := content.Enclosure{
		URL:  element.Attrs["url"],
		Type: element.Attrs["type"],
	}
	// medium="image" without a MIME type still identifies the kind.
	if enclosure.Type == "" && element.Attrs["medium"] != "" {
		enclosure.Type = element.Attrs["medium"]
	}
	if size, err := strconv.ParseInt(element.Attrs["fileSize"], 10, 64); err == nil {
		enclosure.Length = size
	}
	return enclosure
}

func (a *FeedAdapter) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				if formatted := a.formatAuthor(author.Name, author.Email); formatted != "" {
					authors = append(authors, formatted)
				}
			}
		}
	} else if item.Author != nil {
		if formatted := a.formatAuthor(item.Author.Name, item.Author.Email); formatted != "" {
			authors = append(authors, formatted)
		}
	}

	return authors
}

func (a *FeedAdapter) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
