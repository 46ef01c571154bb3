package content

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RejectFloor is the score at or below which an image candidate is never
// selected, whatever else it has going for it.
const RejectFloor = -1000

type imageRule struct {
	pattern *regexp.Regexp
	points  int
}

var imagePenalties = []imageRule{
	{regexp.MustCompile(`favicon|\.ico(\?|$)`), RejectFloor},
	{regexp.MustCompile(`(^|[/_.\-])(pixel|tracking|tracker|spacer|blank|beacon|transparent)([/_.\-]|$)`), RejectFloor},
	{regexp.MustCompile(`(^|[^0-9])1x1([^0-9]|$)`), RejectFloor},
	{regexp.MustCompile(`^data:`), RejectFloor},
	{regexp.MustCompile(`(^|[/_.\-])(icons?|logos?|badges?|avatars?|gravatar|emoji|emoticons?)([/_.\-]|$)`), -500},
	{regexp.MustCompile(`(^|[/_.\-])(share|social)([/_.\-]|$)|(facebook|twitter|linkedin|pinterest|instagram|whatsapp|reddit|mastodon)[-_]?(icon|logo|share|button|btn)?\.(png|gif|svg)`), -500},
	{regexp.MustCompile(`newsletter|subscribe|feedburner`), -500},
	{regexp.MustCompile(`(^|[/_.\-])(banners?|ads?|adverts?|advertising|sponsors?|sponsored|promo)([/_.\-]|$)`), -300},
	{regexp.MustCompile(`(^|[/_.\-])(thumb|thumbs|thumbnails?)([/_.\-]|$)`), -300},
	{regexp.MustCompile(`(^|[^0-9])\d{2,4}x\d{2,4}([^0-9]|$)`), -300},
}

var imageBonuses = []imageRule{
	{regexp.MustCompile(`/uploads/`), 50},
	{regexp.MustCompile(`/content/`), 20},
	{regexp.MustCompile(`/media/`), 30},
	{regexp.MustCompile(`/images?/`), 20},
	{regexp.MustCompile(`/(19|20)\d{2}/(0[1-9]|1[0-2])/`), 40},
}

var genericAltText = map[string]bool{
	"": true, "image": true, "img": true, "photo": true, "picture": true, "thumbnail": true,
	"logo": true, "icon": true, "banner": true, "advertisement": true, "spacer": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".avif": true,
}

type imageCandidate struct {
	URL      string
	Alt      string
	Width    int
	Height   int
	Featured bool
}

// IsDeniedImage reports whether the URL matches any deny-list pattern.
func IsDeniedImage(imageURL string) bool {
	lower := strings.ToLower(imageURL)
	for _, rule := range imagePenalties {
		if rule.pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

func scoreImage(candidate imageCandidate) int {
	lower := strings.ToLower(candidate.URL)

	score := 0
	for _, rule := range imagePenalties {
		if rule.pattern.MatchString(lower) {
			if rule.points <= RejectFloor {
				return RejectFloor
			}
			score += rule.points
		}
	}

	if (candidate.Width > 0 && candidate.Width <= 2) || (candidate.Height > 0 && candidate.Height <= 2) {
		return RejectFloor
	}

	for _, rule := range imageBonuses {
		if rule.pattern.MatchString(lower) {
			score += rule.points
		}
	}

	if candidate.Featured {
		score += 100
	}
	if alt := strings.ToLower(strings.TrimSpace(candidate.Alt)); len(alt) >= 5 && !genericAltText[alt] {
		score += 20
	}
	if candidate.Width >= 300 {
		score += 30
	}

	return score
}

// collectImages returns every <img> in body, in document order, with its
// source resolved against base. Images without a usable source are dropped.
func collectImages(body, base string) []imageCandidate {
	if !strings.Contains(strings.ToLower(body), "<img") {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var candidates []imageCandidate
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		imageURL := NormalizeURL(imageSource(img), base)
		if imageURL == "" {
			return
		}

		class := strings.ToLower(img.AttrOr("class", ""))
		_, featuredAttr := img.Attr("data-featured")

		candidates = append(candidates, imageCandidate{
			URL:      imageURL,
			Alt:      img.AttrOr("alt", ""),
			Width:    dimension(img.AttrOr("width", "")),
			Height:   dimension(img.AttrOr("height", "")),
			Featured: featuredAttr || strings.Contains(class, "featured") || strings.Contains(class, "wp-post-image"),
		})
	})

	return candidates
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
		if value := strings.TrimSpace(img.AttrOr(attr, "")); value != "" && !strings.HasPrefix(strings.ToLower(value), "data:") {
			return value
		}
	}

	if srcset := strings.TrimSpace(img.AttrOr("srcset", "")); srcset != "" {
		if fields := strings.Fields(strings.Split(srcset, ",")[0]); len(fields) > 0 {
			return fields[0]
		}
	}

	return ""
}

func dimension(value string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(value), "px"))
	if err != nil {
		return 0
	}
	return n
}
