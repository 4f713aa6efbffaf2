package invalidation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFile(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "adds_trailing_slash", raw: "https://example.com/a", want: "https://example.com/a/", wantOK: true},
		{name: "keeps_trailing_slash", raw: "https://example.com/a/", want: "https://example.com/a/", wantOK: true},
		{name: "empty_path_is_root", raw: "https://example.com", want: "https://example.com/", wantOK: true},
		{name: "keeps_port", raw: "http://example.com:8080/x", want: "http://example.com:8080/x/", wantOK: true},
		{name: "drops_query_and_fragment", raw: "https://example.com/a/?p=1#top", want: "https://example.com/a/", wantOK: true},
		{name: "lowercases_host", raw: "HTTPS://Example.COM/Path", want: "https://example.com/Path/", wantOK: true},
		{name: "empty", raw: "", wantOK: false},
		{name: "blank", raw: "   ", wantOK: false},
		{name: "no_scheme", raw: "example.com/a", wantOK: false},
		{name: "no_host", raw: "https:///a", wantOK: false},
		{name: "garbage", raw: "://bad", wantOK: false},
		{name: "inner_space", raw: "https://example.com/a b", wantOK: false},
		{name: "opaque", raw: "mailto:someone@example.com", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeFile(tc.raw)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, File, got.Kind)
				assert.Equal(t, tc.want, got.URL)
			} else {
				assert.Equal(t, Item{}, got)
			}
		})
	}
}

func TestNormalizeFileIsFixedPoint(t *testing.T) {
	inputs := []string{
		"https://example.com",
		"https://example.com/a",
		"http://example.com:8080/wp-json/wp/v2/posts/12",
		"https://example.com/caf%C3%A9",
		"HTTPS://EXAMPLE.com/feed/?x=1",
	}
	for _, raw := range inputs {
		first, ok := NormalizeFile(raw)
		assert.True(t, ok, raw)
		second, ok := NormalizeFile(first.URL)
		assert.True(t, ok, first.URL)
		assert.Equal(t, first, second)
	}
}

func TestNormalizePrefix(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "strips_scheme_and_slash", raw: "https://example.com/category/news/", want: "example.com/category/news", wantOK: true},
		{name: "strips_repeated_slashes", raw: "https://example.com/a//", want: "example.com/a", wantOK: true},
		{name: "root_rejected", raw: "https://example.com/", wantOK: false},
		{name: "hostonly_rejected", raw: "https://example.com", wantOK: false},
		{name: "slashes_only_rejected", raw: "https://example.com//", wantOK: false},
		{name: "drops_port", raw: "https://example.com:8443/x/", want: "example.com/x", wantOK: true},
		{name: "drops_fragment", raw: "https://example.com/x#frag", want: "example.com/x", wantOK: true},
		{name: "query_rejected", raw: "https://example.com/?cat=3", wantOK: false},
		{name: "bare_question_mark_rejected", raw: "https://example.com/x?", wantOK: false},
		{name: "no_host", raw: "/category/news/", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizePrefix(tc.raw)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, Prefix, got.Kind)
				assert.Equal(t, tc.want, got.URL)
				assert.False(t, strings.Contains(got.URL, "?"))
			}
		})
	}
}

func TestNormalizeUnknownKind(t *testing.T) {
	_, ok := Normalize(Kind("tag"), "https://example.com/")
	assert.False(t, ok)
}
