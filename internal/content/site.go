package content

import (
	"strconv"
	"strings"
)

// PostType describes how a content type is exposed.
type PostType struct {
	Name string `yaml:"name"`
	// Archive is the archive slug; empty means the type has no archive.
	Archive string `yaml:"archive"`
	// RESTBase is the collection segment; empty means not REST-exposed.
	RESTBase string `yaml:"restBase"`
	Author   bool   `yaml:"author"`
}

// Taxonomy describes how a taxonomy's term archives are laid out.
type Taxonomy struct {
	Name     string `yaml:"name"`
	Base     string `yaml:"base"`
	RESTBase string `yaml:"restBase"`
}

// SiteConfig drives Site. Zero-valued fields take the CMS defaults.
type SiteConfig struct {
	URL           string     `yaml:"url"`
	AuthorBase    string     `yaml:"authorBase"`
	FeedBase      string     `yaml:"feedBase"`
	RESTRoot      string     `yaml:"restRoot"`
	RESTNamespace string     `yaml:"restNamespace"`
	DisableFeeds  bool       `yaml:"disableFeeds"`
	DisableREST   bool       `yaml:"disableREST"`
	PostTypes     []PostType `yaml:"postTypes"`
	Taxonomies    []Taxonomy `yaml:"taxonomies"`
}

func DefaultPostTypes() []PostType {
	return []PostType{
		{Name: "post", RESTBase: "posts", Author: true},
		{Name: "page", RESTBase: "pages", Author: true},
	}
}

func DefaultTaxonomies() []Taxonomy {
	return []Taxonomy{
		{Name: "category", Base: "category", RESTBase: "categories"},
		{Name: "post_tag", Base: "tag", RESTBase: "tags"},
	}
}

// Site maps entities to URLs following the CMS's pretty-permalink layout.
type Site struct {
	cfg        SiteConfig
	base       string
	postTypes  map[string]PostType
	taxonomies map[string]Taxonomy
}

func NewSite(cfg SiteConfig) *Site {
	if cfg.AuthorBase == "" {
		cfg.AuthorBase = "author"
	}
	if cfg.FeedBase == "" {
		cfg.FeedBase = "feed"
	}
	if cfg.RESTRoot == "" {
		cfg.RESTRoot = "wp-json"
	}
	if cfg.RESTNamespace == "" {
		cfg.RESTNamespace = "wp/v2"
	}
	if len(cfg.PostTypes) == 0 {
		cfg.PostTypes = DefaultPostTypes()
	}
	if len(cfg.Taxonomies) == 0 {
		cfg.Taxonomies = DefaultTaxonomies()
	}

	s := &Site{
		cfg:        cfg,
		base:       strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		postTypes:  make(map[string]PostType, len(cfg.PostTypes)),
		taxonomies: make(map[string]Taxonomy, len(cfg.Taxonomies)),
	}
	for _, pt := range cfg.PostTypes {
		s.postTypes[pt.Name] = pt
	}
	for _, tx := range cfg.Taxonomies {
		s.taxonomies[tx.Name] = tx
	}
	return s
}

func (s *Site) HomeURL() string {
	if s.base == "" {
		return ""
	}
	return s.base + "/"
}

func (s *Site) SiteFeedURL() string {
	if s.cfg.DisableFeeds {
		return ""
	}
	return s.join(s.cfg.FeedBase)
}

func (s *Site) Permalink(p Post) string { return p.Permalink }

func (s *Site) PostFeedURL(p Post) string {
	if s.cfg.DisableFeeds || p.Permalink == "" {
		return ""
	}
	return withSegment(p.Permalink, s.cfg.FeedBase)
}

func (s *Site) PostTypeArchiveURL(postType string) string {
	pt, ok := s.postTypes[postType]
	if !ok || pt.Archive == "" {
		return ""
	}
	return s.join(pt.Archive)
}

func (s *Site) PostRESTURL(p Post) string {
	coll := s.PostTypeRESTURL(p.Type)
	if coll == "" || p.ID <= 0 {
		return ""
	}
	return coll + strconv.FormatInt(p.ID, 10)
}

func (s *Site) PostTypeRESTURL(postType string) string {
	pt, ok := s.postTypes[postType]
	if !ok || pt.RESTBase == "" {
		return ""
	}
	return s.rest(pt.RESTBase)
}

func (s *Site) SupportsAuthor(postType string) bool {
	pt, ok := s.postTypes[postType]
	return ok && pt.Author
}

func (s *Site) RESTRootURL() string {
	if s.cfg.DisableREST {
		return ""
	}
	return s.join(s.cfg.RESTRoot)
}

func (s *Site) TermURL(t Term) string {
	if t.Link != "" {
		return t.Link
	}
	tx, ok := s.taxonomies[t.Taxonomy]
	if !ok || tx.Base == "" || t.Slug == "" {
		return ""
	}
	segs := []string{tx.Base}
	segs = append(segs, termPath(t)...)
	return s.join(segs...)
}

func (s *Site) TermFeedURL(t Term) string {
	if s.cfg.DisableFeeds {
		return ""
	}
	u := s.TermURL(t)
	if u == "" {
		return ""
	}
	return withSegment(u, s.cfg.FeedBase)
}

func (s *Site) TermRESTURL(t Term) string {
	coll := s.TaxonomyRESTURL(t.Taxonomy)
	if coll == "" || t.ID <= 0 {
		return ""
	}
	return coll + strconv.FormatInt(t.ID, 10)
}

func (s *Site) TaxonomyRESTURL(taxonomy string) string {
	tx, ok := s.taxonomies[taxonomy]
	if !ok || tx.RESTBase == "" {
		return ""
	}
	return s.rest(tx.RESTBase)
}

func (s *Site) TaxonomiesRESTURL() string { return s.rest("taxonomies") }

func (s *Site) AuthorURL(a Author) string {
	if a.Slug == "" {
		return ""
	}
	return s.join(s.cfg.AuthorBase, a.Slug)
}

func (s *Site) AuthorFeedURL(a Author) string {
	if s.cfg.DisableFeeds {
		return ""
	}
	u := s.AuthorURL(a)
	if u == "" {
		return ""
	}
	return withSegment(u, s.cfg.FeedBase)
}

func (s *Site) AuthorRESTURL(a Author) string {
	if a.ID <= 0 {
		return ""
	}
	coll := s.rest("users")
	if coll == "" {
		return ""
	}
	return coll + strconv.FormatInt(a.ID, 10)
}

// join builds base/seg1/seg2/ with a trailing slash.
func (s *Site) join(segs ...string) string {
	if s.base == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.base)
	for _, seg := range segs {
		seg = strings.Trim(seg, "/")
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(seg)
	}
	b.WriteByte('/')
	return b.String()
}

// rest returns the collection URL for base, with a trailing slash so an id
// can be appended directly.
func (s *Site) rest(base string) string {
	if s.cfg.DisableREST || base == "" {
		return ""
	}
	return s.join(s.cfg.RESTRoot, s.cfg.RESTNamespace, base)
}

// termPath lists slugs from the root ancestor down to t. Cycles are cut off.
func termPath(t Term) []string {
	var rev []string
	seen := map[*Term]struct{}{}
	for cur := &t; cur != nil; cur = cur.Parent {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		if cur.Slug != "" {
			rev = append(rev, cur.Slug)
		}
	}
	out := make([]string, len(rev))
	for i, slug := range rev {
		out[len(rev)-1-i] = slug
	}
	return out
}

// withSegment appends seg as a path segment. Query-style URLs (?p=12) have
// no path to extend and yield "".
func withSegment(u, seg string) string {
	if strings.ContainsAny(u, "?#") {
		return ""
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u + strings.Trim(seg, "/") + "/"
}
