// Package etag maps record versions to and from HTTP entity tags.
package etag

import (
	"strconv"
	"strings"
)

// Header names used for conditional writes.
const (
	HeaderIfMatch = "If-Match"
	HeaderETag    = "ETag"
)

// Version is the optimistic concurrency token of a record.
type Version uint32

// Next returns the version the backend assigns after an accepted update.
func (v Version) Next() Version { return v + 1 }

// String renders the tag form, e.g. "3" with quotes.
func (v Version) String() string { return `"` + strconv.FormatUint(uint64(v), 10) + `"` }

// Parse reads a version from an ETag or If-Match value.
// Weak prefixes and surrounding quotes are ignored.
func Parse(s string) (Version, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "W/")
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return Version(n), true
}
