package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateItems(t *testing.T) {
	got := CreateItems([]Candidate{
		{URL: "https://example.com/a", Kind: File},
		{URL: "", Kind: File},
		{URL: "https://example.com/", Kind: File},
		{URL: "https://example.com/a/", Kind: File},
		{URL: "https://example.com/category/news/", Kind: Prefix},
		{URL: "https://example.com/category/news", Kind: Prefix},
		{URL: "https://example.com/?s=term", Kind: Prefix},
		{URL: "https://example.com/category/news/", Kind: File},
	})

	assert.Equal(t, []Item{
		{Kind: File, URL: "https://example.com/a/"},
		{Kind: File, URL: "https://example.com/"},
		{Kind: Prefix, URL: "example.com/category/news"},
		{Kind: File, URL: "https://example.com/category/news/"},
	}, got)
}

func TestCreateItemsEmpty(t *testing.T) {
	assert.Empty(t, CreateItems(nil))
}

func TestPartition(t *testing.T) {
	files, prefixes := Partition([]Item{
		{Kind: Prefix, URL: "example.com/tag/go"},
		{Kind: File, URL: "https://example.com/"},
		{Kind: Prefix, URL: "example.com/author/jdoe"},
		{Kind: File, URL: "https://example.com/feed/"},
	})
	assert.Equal(t, []string{"https://example.com/", "https://example.com/feed/"}, files)
	assert.Equal(t, []string{"example.com/tag/go", "example.com/author/jdoe"}, prefixes)
}

func TestDedupe(t *testing.T) {
	a := Item{Kind: File, URL: "https://example.com/"}
	b := Item{Kind: Prefix, URL: "example.com"}
	assert.Equal(t, []Item{a, b}, Dedupe([]Item{a, b, a, b}))
}
