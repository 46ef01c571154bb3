package content

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const Ellipsis = "…"

const blockElements = "p, br, div, li, ul, ol, h1, h2, h3, h4, h5, h6, tr, td, blockquote, figure, figcaption, section, article"

// StripMarkup reduces an HTML fragment to its visible text with entities
// decoded and whitespace collapsed.
func StripMarkup(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	text := body
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find("script, style, noscript").Remove()
		doc.Find(blockElements).AfterHtml(" ")
		text = doc.Text()
	}

	// Feeds regularly double-escape entities ("&amp;amp;").
	text = html.UnescapeString(text)
	text = norm.NFC.String(text)

	return strings.Join(strings.Fields(text), " ")
}

// CleanExcerpt strips markup and truncates the text to limit runes, adding an
// ellipsis when anything was cut.
func CleanExcerpt(body string, limit int) string {
	text := StripMarkup(body)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:limit])
	if !unicode.IsSpace(runes[limit]) {
		if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
			cut = cut[:i]
		}
	}
	cut = strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return cut + Ellipsis
}
