package backend

import "strings"

// DefaultURL is the local extraction backend used when no override applies.
const DefaultURL = "http://localhost:8000"

// Resolve picks the backend base URL for a page served from pageHost.
// A page on localhost always talks to DefaultURL; any other host uses the
// override when one is configured and DefaultURL otherwise.
func Resolve(pageHost, override string) string {
	if strings.EqualFold(strings.TrimSpace(pageHost), "localhost") {
		return DefaultURL
	}
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	return DefaultURL
}

// Resolver carries the inputs to Resolve so callers can hand a single value
// to the components that need the backend address.
type Resolver struct {
	PageHost string
	Override string
}

// BaseURL returns the resolved base URL.
func (r Resolver) BaseURL() string {
	return Resolve(r.PageHost, r.Override)
}

// ExtractURL returns the extraction endpoint under the resolved base.
func (r Resolver) ExtractURL() string {
	return JoinPath(r.BaseURL(), "/extract")
}

// JoinPath appends path to base without doubling or dropping the slash.
func JoinPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
