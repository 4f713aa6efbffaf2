package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSite() *Site {
	return NewSite(SiteConfig{
		URL: "https://example.com/",
		PostTypes: []PostType{
			{Name: "post", RESTBase: "posts", Author: true},
			{Name: "product", Archive: "shop", RESTBase: "products"},
			{Name: "private_note"},
		},
	})
}

func TestSitePostURLs(t *testing.T) {
	s := newTestSite()
	p := Post{ID: 12, Type: "post", Permalink: "https://example.com/a/"}

	assert.Equal(t, "https://example.com/", s.HomeURL())
	assert.Equal(t, "https://example.com/feed/", s.SiteFeedURL())
	assert.Equal(t, "https://example.com/a/", s.Permalink(p))
	assert.Equal(t, "https://example.com/a/feed/", s.PostFeedURL(p))
	assert.Equal(t, "https://example.com/wp-json/wp/v2/posts/12", s.PostRESTURL(p))
	assert.Equal(t, "https://example.com/wp-json/wp/v2/posts/", s.PostTypeRESTURL("post"))
	assert.Equal(t, "https://example.com/wp-json/", s.RESTRootURL())
	assert.Equal(t, "", s.PostTypeArchiveURL("post"))
	assert.Equal(t, "https://example.com/shop/", s.PostTypeArchiveURL("product"))
	assert.True(t, s.SupportsAuthor("post"))
	assert.False(t, s.SupportsAuthor("product"))
}

func TestSiteQueryPermalinkHasNoFeed(t *testing.T) {
	s := newTestSite()
	p := Post{ID: 12, Type: "post", Permalink: "https://example.com/?p=12"}
	assert.Equal(t, "https://example.com/?p=12", s.Permalink(p))
	assert.Equal(t, "", s.PostFeedURL(p))

	term := Term{ID: 4, Taxonomy: "category", Slug: "news", Link: "https://example.com/?cat=4"}
	assert.Equal(t, "", s.TermFeedURL(term))
}

func TestSiteUnknownOrHiddenTypes(t *testing.T) {
	s := newTestSite()
	assert.Equal(t, "", s.PostRESTURL(Post{ID: 3, Type: "private_note"}))
	assert.Equal(t, "", s.PostRESTURL(Post{ID: 3, Type: "missing"}))
	assert.Equal(t, "", s.PostRESTURL(Post{Type: "post"}))
	assert.Equal(t, "", s.PostFeedURL(Post{Type: "post"}))
	assert.Equal(t, "", s.PostTypeArchiveURL("missing"))
}

func TestSiteTermURLs(t *testing.T) {
	s := newTestSite()
	parent := &Term{ID: 2, Taxonomy: "category", Slug: "world"}
	child := Term{ID: 5, Taxonomy: "category", Slug: "europe", Parent: parent}

	assert.Equal(t, "https://example.com/category/world/europe/", s.TermURL(child))
	assert.Equal(t, "https://example.com/category/world/europe/feed/", s.TermFeedURL(child))
	assert.Equal(t, "https://example.com/wp-json/wp/v2/categories/5", s.TermRESTURL(child))
	assert.Equal(t, "https://example.com/wp-json/wp/v2/categories/", s.TaxonomyRESTURL("category"))
	assert.Equal(t, "https://example.com/tag/go/", s.TermURL(Term{Taxonomy: "post_tag", Slug: "go"}))
	assert.Equal(t, "https://example.com/wp-json/wp/v2/taxonomies/", s.TaxonomiesRESTURL())
	assert.Equal(t, "", s.TermURL(Term{Taxonomy: "genre", Slug: "jazz"}))
	assert.Equal(t, "https://cdn.example.com/x/", s.TermURL(Term{Taxonomy: "genre", Link: "https://cdn.example.com/x/"}))
}

func TestSiteTermParentCycle(t *testing.T) {
	s := newTestSite()
	a := &Term{ID: 1, Taxonomy: "category", Slug: "a"}
	b := &Term{ID: 2, Taxonomy: "category", Slug: "b", Parent: a}
	a.Parent = b

	assert.NotPanics(t, func() { _ = s.TermURL(*b) })
}

func TestSiteAuthorURLs(t *testing.T) {
	s := newTestSite()
	a := Author{ID: 7, Slug: "jdoe"}
	assert.Equal(t, "https://example.com/author/jdoe/", s.AuthorURL(a))
	assert.Equal(t, "https://example.com/author/jdoe/feed/", s.AuthorFeedURL(a))
	assert.Equal(t, "https://example.com/wp-json/wp/v2/users/7", s.AuthorRESTURL(a))
	assert.Equal(t, "", s.AuthorURL(Author{ID: 7}))
}

func TestSiteDisabledFeedsAndREST(t *testing.T) {
	s := NewSite(SiteConfig{URL: "https://example.com", DisableFeeds: true, DisableREST: true})
	p := Post{ID: 1, Type: "post", Permalink: "https://example.com/a/"}

	assert.Equal(t, "", s.SiteFeedURL())
	assert.Equal(t, "", s.PostFeedURL(p))
	assert.Equal(t, "", s.PostRESTURL(p))
	assert.Equal(t, "", s.RESTRootURL())
	assert.Equal(t, "", s.TaxonomiesRESTURL())
	assert.Equal(t, "", s.AuthorRESTURL(Author{ID: 1}))
}

func TestChangeEventCanonical(t *testing.T) {
	post := &Post{ID: 1, Type: "post"}
	testCases := []struct {
		name string
		ev   ChangeEvent
		want bool
	}{
		{name: "publish", ev: ChangeEvent{EntityType: EntityPost, Post: post, PreviousState: StatusDraft, NewState: StatusPublish}, want: true},
		{name: "unpublish", ev: ChangeEvent{EntityType: EntityPost, Post: post, PreviousState: StatusPublish, NewState: StatusTrash}, want: true},
		{name: "republish", ev: ChangeEvent{EntityType: EntityPost, Post: post, PreviousState: StatusPublish, NewState: StatusPublish}, want: true},
		{name: "draft_save", ev: ChangeEvent{EntityType: EntityPost, Post: post, PreviousState: StatusDraft, NewState: StatusDraft}, want: false},
		{name: "auto_draft", ev: ChangeEvent{EntityType: EntityPost, Post: post, PreviousState: StatusAutoDraft, NewState: StatusDraft}, want: false},
		{name: "autosave", ev: ChangeEvent{EntityType: EntityPost, Post: &Post{Autosave: true}, NewState: StatusPublish}, want: false},
		{name: "revision", ev: ChangeEvent{EntityType: EntityPost, Post: &Post{Type: TypeRevision}, PreviousState: StatusInherit, NewState: StatusPublish}, want: false},
		{name: "nil_post", ev: ChangeEvent{EntityType: EntityPost, NewState: StatusPublish}, want: false},
		{name: "term", ev: ChangeEvent{EntityType: EntityTerm, Term: &Term{ID: 1}, Action: ActionDeleted}, want: true},
		{name: "nil_term", ev: ChangeEvent{EntityType: EntityTerm}, want: false},
		{name: "unknown", ev: ChangeEvent{EntityType: "comment"}, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ev.Canonical())
		})
	}
}
