package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/content-comb/app/content"
)

var _ Adapter = (*PagedAdapter)(nil)

const (
	pageSize        = 50
	detailChunkSize = 50
	defaultMaxPages = 20
	defaultMaxItems = 500

	watchURLTemplate = "https://www.youtube.com/watch?v=%s"
	embedURLTemplate = "https://www.youtube.com/embed/%s"
	embedMediaType   = "video/embed"
)

type statusError struct {
	Code   int
	Status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

// PagedAdapter walks a paginated video listing newest-first and resolves
// each listed id through the detail endpoint.
type PagedAdapter struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	userAgent      string
	defaultTimeout time.Duration
	retry          RetryPolicy
	maxPages       int
}

func NewPagedAdapter(httpClient *http.Client, baseURL, apiKey, userAgent string, defaultTimeout time.Duration) *PagedAdapter {
	return &PagedAdapter{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		userAgent:      userAgent,
		defaultTimeout: defaultTimeout,
		retry:          DefaultRetryPolicy(),
		maxPages:       defaultMaxPages,
	}
}

func (a *PagedAdapter) Fetch(ctx context.Context, req Request) (*Result, error) {
	ids, err := a.listIDs(ctx, req)
	if err != nil {
		return nil, err
	}

	details := make(map[string]videoDetail, len(ids))
	for start := 0; start < len(ids); start += detailChunkSize {
		end := min(start+detailChunkSize, len(ids))

		chunk, err := a.fetchDetails(ctx, req, ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, detail := range chunk {
			details[detail.ID] = detail
		}
	}

	result := &Result{Entries: make([]content.RawEntry, 0, len(ids))}
	ineligible := 0
	for _, id := range ids {
		detail, ok := details[id]
		if !ok || !detail.Eligible {
			ineligible++
			continue
		}
		result.Entries = append(result.Entries, toRawEntry(detail))
	}

	slog.Debug("Listing resolved", "source", req.SourceID, "listed", len(ids), "eligible", len(result.Entries), "dropped", ineligible)
	return result, nil
}

// listIDs pages through the listing until the cutoff, the last seen id or a
// safety cap is reached.
func (a *PagedAdapter) listIDs(ctx context.Context, req Request) ([]string, error) {
	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	var ids []string
	pageToken := ""

scan:
	for page := 0; page < a.maxPages; page++ {
		params := url.Values{}
		params.Set("part", "contentDetails")
		params.Set("playlistId", req.Endpoint)
		params.Set("maxResults", strconv.Itoa(min(pageSize, maxItems)))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		body, err := a.getJSON(ctx, req, "playlistItems", params)
		if err != nil {
			return nil, err
		}

		listing, err := parseListing(body)
		if err != nil {
			return nil, &ParseError{SourceID: req.SourceID, Err: err}
		}

		switch listing.Kind {
		case envelopeError:
			return nil, &TransportError{SourceID: req.SourceID, Err: fmt.Errorf("upstream error: %s", listing.Message)}
		case envelopeUnknown:
			slog.Warn("Unrecognised listing response", "source", req.SourceID, "page", page)
			break scan
		}

		for _, item := range listing.Items {
			if !req.Backfill && req.LastSeenItemID != "" && item.ID == req.LastSeenItemID {
				break scan
			}
			if !item.PublishedAt.IsZero() && item.PublishedAt.Before(req.Cutoff) {
				break scan
			}
			ids = append(ids, item.ID)
			if len(ids) >= maxItems {
				break scan
			}
		}

		if listing.NextPageToken == "" {
			break
		}
		pageToken = listing.NextPageToken
	}

	return ids, nil
}

func (a *PagedAdapter) fetchDetails(ctx context.Context, req Request, ids []string) ([]videoDetail, error) {
	params := url.Values{}
	params.Set("part", "snippet,status")
	params.Set("id", strings.Join(ids, ","))

	body, err := a.getJSON(ctx, req, "videos", params)
	if err != nil {
		return nil, err
	}

	page, err := parseDetails(body)
	if err != nil {
		return nil, &ParseError{SourceID: req.SourceID, Err: err}
	}

	switch page.Kind {
	case envelopeError:
		return nil, &TransportError{SourceID: req.SourceID, Err: fmt.Errorf("upstream error: %s", page.Message)}
	case envelopeUnknown:
		slog.Warn("Unrecognised detail response", "source", req.SourceID, "ids", len(ids))
	}

	return page.Items, nil
}

func (a *PagedAdapter) getJSON(ctx context.Context, req Request, resource string, params url.Values) ([]byte, error) {
	params.Set("key", a.apiKey)
	endpoint := a.baseURL + "/" + resource + "?" + params.Encode()
	timeout := timeoutOr(req, a.defaultTimeout)

	var body []byte
	err := Retry(ctx, a.retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("User-Agent", a.userAgent)
		httpReq.Header.Set("Accept", "application/json")

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", resource, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// Error bodies carry the upstream message, which beats a bare status.
			if page, perr := parseListing(data); perr == nil && page.Kind == envelopeError {
				err = fmt.Errorf("%w: %s", &statusError{Code: resp.StatusCode, Status: resp.Status}, page.Message)
			} else {
				err = &statusError{Code: resp.StatusCode, Status: resp.Status}
			}
			if isRetryableStatus(resp.StatusCode) {
				return &RetryableError{Err: err, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
			}
			return err
		}

		body = data
		return nil
	})
	if err != nil {
		transportErr := &TransportError{SourceID: req.SourceID, Err: err}
		var status *statusError
		if errors.As(err, &status) {
			transportErr.StatusCode = status.Code
		}
		return nil, transportErr
	}

	return body, nil
}

func toRawEntry(detail videoDetail) content.RawEntry {
	entry := content.RawEntry{
		ExternalID: detail.ID,
		Title:      detail.Title,
		Link:       fmt.Sprintf(watchURLTemplate, url.QueryEscape(detail.ID)),
		Summary:    detail.Description,
		Published:  detail.Published,
		ImageURL:   detail.Thumbnail,
		Media: []content.Enclosure{{
			URL:  fmt.Sprintf(embedURLTemplate, url.PathEscape(detail.ID)),
			Type: embedMediaType,
		}},
		Categories: detail.Tags,
	}

	if published, err := time.Parse(time.RFC3339, detail.Published); err == nil {
		entry.PublishedAt = &published
	}
	if detail.Channel != "" {
		entry.Authors = []string{detail.Channel}
	}

	return entry
}
