package etag

import (
	"fmt"
	"strconv"
	"strings"
)

type ETaggable interface {
	V() int64
}

// ETag returns the opaque tag without quotes.
//
// For HTTP headers, remember that the actual header value is quoted:
//
//	fmt.Sprintf("%q", ETag(obj))
func ETag(obj ETaggable) string {
	return "v:" + strconv.FormatInt(obj.V(), 10)
}

// Header returns the quoted strong validator for an ETag header.
func Header(obj ETaggable) string {
	return strconv.Quote(ETag(obj))
}

// ParseETag extracts the version from a tag. Quotes and a weak prefix are
// accepted.
func ParseETag(etag string) (int64, error) {
	const prefix = "v:"
	tag := strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	tag = strings.Trim(tag, `"`)
	if !strings.HasPrefix(tag, prefix) {
		return 0, fmt.Errorf("invalid etag format")
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(tag, prefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid etag version: %w", err)
	}
	return v, nil
}

// MatchesNoneOf reports whether an If-None-Match header value names obj's
// current tag, using weak comparison.
func MatchesNoneOf(header string, obj ETaggable) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		v, err := ParseETag(candidate)
		if err == nil && v == obj.V() {
			return true
		}
	}
	return false
}
