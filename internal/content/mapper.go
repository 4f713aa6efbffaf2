package content

// Mapper exposes the entity-to-URL primitives of the CMS. An empty string
// means the URL does not exist (no archive, not REST-exposed, ...).
type Mapper interface {
	HomeURL() string
	SiteFeedURL() string

	Permalink(p Post) string
	PostFeedURL(p Post) string
	PostTypeArchiveURL(postType string) string
	PostRESTURL(p Post) string
	PostTypeRESTURL(postType string) string
	SupportsAuthor(postType string) bool
	RESTRootURL() string

	TermURL(t Term) string
	TermFeedURL(t Term) string
	TermRESTURL(t Term) string
	TaxonomyRESTURL(taxonomy string) string
	TaxonomiesRESTURL() string

	AuthorURL(a Author) string
	AuthorFeedURL(a Author) string
	AuthorRESTURL(a Author) string
}
