package invalidation

import (
	"net/url"
	"strings"
)

// NormalizeFile turns raw into a File item: scheme://host[:port]path/ with
// query and fragment dropped. ok is false for empty or unparseable input.
func NormalizeFile(raw string) (Item, bool) {
	u, ok := parse(raw)
	if !ok {
		return Item{}, false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return Item{Kind: File, URL: u.Scheme + "://" + strings.ToLower(u.Host) + path}, true
}

// NormalizePrefix turns raw into a Prefix item: host+path without a trailing
// slash. Anything containing '?' is rejected since the CDN cannot express a
// query-bearing prefix. A URL without a path is rejected too: a bare host
// prefix matches the whole zone.
func NormalizePrefix(raw string) (Item, bool) {
	if strings.Contains(raw, "?") {
		return Item{}, false
	}
	u, ok := parse(raw)
	if !ok {
		return Item{}, false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Item{}, false
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		return Item{}, false
	}
	return Item{Kind: Prefix, URL: host + path}, true
}

// Normalize dispatches on kind.
func Normalize(kind Kind, raw string) (Item, bool) {
	switch kind {
	case File:
		return NormalizeFile(raw)
	case Prefix:
		return NormalizePrefix(raw)
	default:
		return Item{}, false
	}
}

func parse(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	return u, true
}
