package urlqueue

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Prefixes removed by NormalizeURL. Order matters: only the first match is
// stripped.
var strippedPrefixes = []string{"https://www.", "http://www.", "https://", "http://", "www."}

// Characters that may appear in a URL. Everything else is dropped from an href
// before it is validated.
const urlChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" +
	"$-_.+!*'(),{}|\\^~[]`<>#%\";/?:@&="

// Entry is a single unit of work on the crawl worklist.
type Entry[T any] struct {
	URL   string
	Depth int
	Meta  T
}

// URLQueue is the crawl worklist. Entries come out in LIFO order so that a
// depth-first walk visits children in document order.
type URLQueue[T any] struct {
	entries []Entry[T]
}

func NewURLQueue[T any]() *URLQueue[T] {
	return &URLQueue[T]{entries: make([]Entry[T], 0)}
}

func (q *URLQueue[T]) Add(urlStr string, depth int, meta T) {
	q.entries = append(q.entries, Entry[T]{URL: urlStr, Depth: depth, Meta: meta})
}

// AddChildren pushes links so that links[0] is popped first.
func (q *URLQueue[T]) AddChildren(links []string, depth int, meta T) {
	for i := len(links) - 1; i >= 0; i-- {
		q.Add(links[i], depth, meta)
	}
}

func (q *URLQueue[T]) Get() (Entry[T], bool) {
	if len(q.entries) == 0 {
		var zero Entry[T]
		return zero, false
	}
	last := len(q.entries) - 1
	e := q.entries[last]
	q.entries = q.entries[:last]
	return e, true
}

func (q *URLQueue[T]) Size() int {
	return len(q.entries)
}

// NormalizeURL turns a URL into the key pages are deduplicated by. One trailing
// slash is removed, then the first matching scheme/www prefix.
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSuffix(urlStr, "/")

	for _, prefix := range strippedPrefixes {
		if strings.HasPrefix(urlStr, prefix) {
			return urlStr[len(prefix):]
		}
	}

	return urlStr
}

// ExtractLinks returns the usable hrefs of every anchor in the document,
// deduplicated in first-occurrence order. Broken markup never fails: whatever
// anchors the parser recovers are returned.
func ExtractLinks(body io.Reader) []string {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}

		link := SanitizeURL(href)
		if strings.HasPrefix(link, "mailto") || !IsValidURL(link) {
			return
		}

		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}

// SanitizeURL drops every character that cannot appear in a URL.
func SanitizeURL(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < 0x80 && strings.ContainsRune(urlChars, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidURL accepts absolute URLs that carry a host, and references that
// start with a slash. Bare relative references are rejected.
func IsValidURL(link string) bool {
	if link == "" {
		return false
	}

	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	if u.Scheme != "" {
		return u.Host != ""
	}

	return strings.HasPrefix(link, "/")
}

// ResolveURL expands link against the page it was found on.
func ResolveURL(base, link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return link, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	return baseURL.ResolveReference(ref).String(), nil
}
