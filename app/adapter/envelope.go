package adapter

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// envelopeKind tags the response shapes the paged API is known to produce.
// Anything unrecognised is envelopeUnknown and yields no items.
type envelopeKind int

const (
	envelopeUnknown envelopeKind = iota
	envelopeNative
	envelopeWrapped
	envelopeError
)

func (k envelopeKind) String() string {
	switch k {
	case envelopeNative:
		return "native"
	case envelopeWrapped:
		return "wrapped"
	case envelopeError:
		return "error"
	default:
		return "unknown"
	}
}

var errInvalidJSON = errors.New("response is not valid JSON")

var thumbnailPreference = []string{"maxres", "standard", "high", "medium", "default"}

type listingItem struct {
	ID          string
	PublishedAt time.Time // zero when upstream omitted it
}

type listingPage struct {
	Kind          envelopeKind
	Items         []listingItem
	NextPageToken string
	Message       string
}

type videoDetail struct {
	ID          string
	Title       string
	Description string
	Published   string
	Thumbnail   string
	Channel     string
	Tags        []string
	Eligible    bool
}

type detailPage struct {
	Kind    envelopeKind
	Items   []videoDetail
	Message string
}

// parseListing accepts {items, nextPageToken}, {data:{items, next}} and
// {error:{message}}.
func parseListing(body []byte) (listingPage, error) {
	if !gjson.ValidBytes(body) {
		return listingPage{}, errInvalidJSON
	}
	root := gjson.ParseBytes(body)

	var page listingPage
	var items gjson.Result

	switch {
	case root.Get("error").Exists():
		return listingPage{Kind: envelopeError, Message: errorMessage(root)}, nil
	case root.Get("items").IsArray():
		page.Kind = envelopeNative
		items = root.Get("items")
		page.NextPageToken = root.Get("nextPageToken").String()
	case root.Get("data.items").IsArray():
		page.Kind = envelopeWrapped
		items = root.Get("data.items")
		page.NextPageToken = root.Get("data.next").String()
	default:
		return listingPage{Kind: envelopeUnknown}, nil
	}

	for _, item := range items.Array() {
		id := firstString(item, "contentDetails.videoId", "snippet.resourceId.videoId", "id")
		if id == "" {
			continue
		}
		entry := listingItem{ID: id}
		if published := firstString(item, "contentDetails.videoPublishedAt", "snippet.publishedAt", "publishedAt"); published != "" {
			if t, err := time.Parse(time.RFC3339, published); err == nil {
				entry.PublishedAt = t.UTC()
			}
		}
		page.Items = append(page.Items, entry)
	}

	return page, nil
}

// parseDetails accepts {items}, {data:[...]} and {error:{message}}.
func parseDetails(body []byte) (detailPage, error) {
	if !gjson.ValidBytes(body) {
		return detailPage{}, errInvalidJSON
	}
	root := gjson.ParseBytes(body)

	var page detailPage
	var items gjson.Result

	switch {
	case root.Get("error").Exists():
		return detailPage{Kind: envelopeError, Message: errorMessage(root)}, nil
	case root.Get("items").IsArray():
		page.Kind = envelopeNative
		items = root.Get("items")
	case root.Get("data").IsArray():
		page.Kind = envelopeWrapped
		items = root.Get("data")
	default:
		return detailPage{Kind: envelopeUnknown}, nil
	}

	for _, item := range items.Array() {
		id := item.Get("id").String()
		if id == "" {
			continue
		}

		detail := videoDetail{
			ID:          id,
			Title:       item.Get("snippet.title").String(),
			Description: item.Get("snippet.description").String(),
			Published:   item.Get("snippet.publishedAt").String(),
			Channel:     item.Get("snippet.channelTitle").String(),
			Eligible:    isEligible(item.Get("status")),
		}

		for _, size := range thumbnailPreference {
			if thumbnail := item.Get("snippet.thumbnails." + size + ".url").String(); thumbnail != "" {
				detail.Thumbnail = thumbnail
				break
			}
		}

		for _, tag := range item.Get("snippet.tags").Array() {
			detail.Tags = append(detail.Tags, tag.String())
		}

		page.Items = append(page.Items, detail)
	}

	return page, nil
}

// isEligible requires an explicit embeddable flag and a non-private video.
// A missing status block fails closed.
func isEligible(status gjson.Result) bool {
	if !status.Exists() {
		return false
	}
	if status.Get("embeddable").Type != gjson.True {
		return false
	}
	return status.Get("privacyStatus").String() != "private"
}

func errorMessage(root gjson.Result) string {
	if message := root.Get("error.message").String(); message != "" {
		return message
	}
	return root.Get("error").String()
}

func firstString(item gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := item.Get(path).String(); value != "" {
			return value
		}
	}
	return ""
}
