package resolver

import (
	"net/http"
	"regexp"
	"strings"
)

// DefaultQueryParam is the query parameter consulted when the path has no ID.
const DefaultQueryParam = "id"

// singleItemMethods are the verbs that address one item and so justify the
// header regex fallback.
var singleItemMethods = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// fallbackHeaders are searched, in order, by the regex fallback.
var fallbackHeaders = []string{HeaderForwardedURI, HeaderReferer, HeaderOriginalURI}

// IDExtractor finds the item ID for one resource collection.
type IDExtractor struct {
	resource   string
	queryParam string
	pattern    *regexp.Regexp
}

// NewIDExtractor returns an extractor for the collection named resource.
func NewIDExtractor(resource string) *IDExtractor {
	return &IDExtractor{
		resource:   resource,
		queryParam: DefaultQueryParam,
		pattern:    regexp.MustCompile(`/` + regexp.QuoteMeta(resource) + `/([^/?#]+)`),
	}
}

// Resource returns the collection token.
func (x *IDExtractor) Resource() string {
	return x.resource
}

// Extract returns the resource ID for r given its resolved path, or "" when
// the request addresses the collection.
func (x *IDExtractor) Extract(r *http.Request, path string) string {
	if id, ok := SegmentAfter(path, x.resource); ok {
		return id
	}

	if id := r.URL.Query().Get(x.queryParam); id != "" {
		return id
	}

	if !singleItemMethods[r.Method] {
		return ""
	}
	for _, h := range fallbackHeaders {
		if m := x.pattern.FindStringSubmatch(r.Header.Get(h)); m != nil {
			return m[1]
		}
	}
	return ""
}

// SegmentAfter splits path on "/" (ignoring the query string and empty
// segments) and returns the segment following the first occurrence of token.
func SegmentAfter(path, token string) (string, bool) {
	path, _, _ = strings.Cut(path, "?")
	path, _, _ = strings.Cut(path, "#")

	var prev string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if prev == token {
			return seg, true
		}
		prev = seg
	}
	return "", false
}
