package enrichment

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// stripSelector removes the parts of a page that carry navigation or
// machinery rather than content.
const stripSelector = "script, style, noscript, nav, header, footer, aside, form"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Two or more capitalized words in a row. A crude named-entity
	// proxy that works well enough on institutional pages.
	entityRe = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)
)

// stopwords excluded from keyword ranking.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "more": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "she": {}, "that": {}, "the": {}, "their": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "were": {}, "will": {}, "with": {}, "you": {},
	"your": {},
}

func pageTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return whitespaceRe.ReplaceAllString(title, " ")
}

// pageText returns the page's visible text with markup stripped and
// whitespace collapsed.
func pageText(doc *goquery.Document) string {
	sel := doc.Find("body").Clone()
	if sel.Length() == 0 {
		sel = doc.Selection.Clone()
	}
	sel.Find(stripSelector).Remove()
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(sel.Text(), " "))
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// extractEntities finds runs of capitalized words, deduplicated in
// first-seen order.
func extractEntities(text string, limit int) []string {
	seen := make(map[string]struct{})
	var entities []string
	for _, m := range entityRe.FindAllString(text, -1) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		entities = append(entities, m)
		if len(entities) >= limit {
			break
		}
	}
	return entities
}

// rankKeywords returns the most frequent content words, longest-streak
// first. Ties break alphabetically so the output is stable.
func rankKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(word) < 3 {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		counts[word]++
	}

	keywords := make([]string, 0, len(counts))
	for word := range counts {
		keywords = append(keywords, word)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// contentTags derives coarse categories from the URL path segments plus
// the top-ranked keywords.
func contentTags(rawURL string, keywords []string) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	if u, err := url.Parse(rawURL); err == nil {
		for _, seg := range strings.Split(u.Path, "/") {
			seg = strings.TrimSuffix(seg, ".html")
			if len(seg) >= 3 && !strings.ContainsAny(seg, ".%") {
				add(seg)
			}
		}
	}
	for i, kw := range keywords {
		if i >= 5 {
			break
		}
		add(kw)
	}
	return tags
}

// hasLinkSuffix reports whether any anchor on the page points at a file
// with one of the given extensions.
func hasLinkSuffix(doc *goquery.Document, suffixes ...string) bool {
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.ToLower(href)
		if i := strings.IndexAny(href, "?#"); i >= 0 {
			href = href[:i]
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(href, suffix) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
