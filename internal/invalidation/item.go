// Package invalidation defines the CDN invalidation item and the URL
// normalization rules every purge target goes through.
package invalidation

// Kind selects how the CDN matches an item against its cached URLs.
type Kind string

const (
	// File purges exactly one resource URL.
	File Kind = "file"
	// Prefix purges every cached URL starting with host+path.
	Prefix Kind = "prefix"
)

// Item is one purge target. Two items are equal iff Kind and URL match.
type Item struct {
	Kind Kind   `json:"type"`
	URL  string `json:"url"`
}

// Key is the dedup identity of an item.
type Key struct {
	Kind Kind
	URL  string
}

func (it Item) Key() Key { return Key{Kind: it.Kind, URL: it.URL} }

func (it Item) String() string { return string(it.Kind) + ":" + it.URL }

// Partition splits items by kind, preserving order within each kind.
func Partition(items []Item) (files, prefixes []string) {
	for _, it := range items {
		switch it.Kind {
		case File:
			files = append(files, it.URL)
		case Prefix:
			prefixes = append(prefixes, it.URL)
		}
	}
	return files, prefixes
}

// Dedupe drops repeated keys keeping the first occurrence.
func Dedupe(items []Item) []Item {
	seen := make(map[Key]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
