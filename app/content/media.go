package content

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var mediaExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".oga": true, ".opus": true,
	".wav": true, ".flac": true, ".mp4": true, ".m4v": true, ".mov": true, ".webm": true,
}

var mediaURLPattern = regexp.MustCompile(`(?i)(?:https?:)?//[^\s"'<>()]+\.(?:mp3|m4a|aac|ogg|oga|opus|wav|flac|mp4|m4v|mov|webm)(?:\?[^\s"'<>()]*)?`)

// ExtractMediaURL finds the entry's audio or video URL: enclosures first,
// then media:content, then a scan of the body text.
func ExtractMediaURL(entry RawEntry, base string) string {
	for _, group := range [][]Enclosure{entry.Enclosures, entry.Media} {
		for _, enclosure := range group {
			if !isMediaEnclosure(enclosure) {
				continue
			}
			if u := NormalizeURL(enclosure.URL, base); u != "" {
				return u
			}
		}
	}

	for _, text := range []string{entry.Body, entry.Summary} {
		for _, match := range mediaURLPattern.FindAllString(html.UnescapeString(text), -1) {
			if u := NormalizeURL(match, base); u != "" {
				return u
			}
		}
	}

	return ""
}

func isMediaEnclosure(enclosure Enclosure) bool {
	mediaType := strings.ToLower(enclosure.Type)
	if strings.HasPrefix(mediaType, "audio") || strings.HasPrefix(mediaType, "video") {
		return true
	}
	if mediaType != "" {
		return false
	}
	return mediaExtensions[urlExtension(enclosure.URL)]
}

func isImageEnclosure(enclosure Enclosure) bool {
	mediaType := strings.ToLower(enclosure.Type)
	if strings.HasPrefix(mediaType, "image") {
		return true
	}
	if mediaType != "" {
		return false
	}
	return imageExtensions[urlExtension(enclosure.URL)]
}

func urlExtension(raw string) string {
	parsed, err := url.Parse(html.UnescapeString(strings.TrimSpace(raw)))
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(parsed.Path))
}
