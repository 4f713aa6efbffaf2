// Package resolver turns a changed entity into the two sets of purge
// targets: high priority (purged inline) and low priority (queued).
package resolver

import (
	"edgepurge/internal/content"
	"edgepurge/internal/invalidation"
)

// Items is the resolver output for one entity.
type Items struct {
	High []invalidation.Item
	Low  []invalidation.Item
}

type Resolver struct {
	urls content.Mapper
}

func New(urls content.Mapper) *Resolver {
	return &Resolver{urls: urls}
}

// Resolve dispatches on the event's entity type. Non-canonical events and
// events without an entity yield no items.
func (r *Resolver) Resolve(ev content.ChangeEvent) Items {
	switch {
	case ev.EntityType == content.EntityPost && ev.Post != nil:
		return Items{High: r.PostHigh(*ev.Post), Low: r.PostLow(*ev.Post)}
	case ev.EntityType == content.EntityTerm && ev.Term != nil:
		return Items{High: r.TermHigh(*ev.Term), Low: r.TermLow(*ev.Term)}
	default:
		return Items{}
	}
}

// PostHigh covers the pages a reader hits right after publishing.
func (r *Resolver) PostHigh(p content.Post) []invalidation.Item {
	m := r.urls
	return invalidation.CreateItems([]invalidation.Candidate{
		file(m.Permalink(p)),
		file(m.HomeURL()),
		file(m.PostTypeArchiveURL(p.Type)),
		file(m.PostRESTURL(p)),
		file(m.PostTypeRESTURL(p.Type)),
		restRoot(m, m.PostTypeRESTURL(p.Type)),
	})
}

// PostLow covers the derived listings whose enumeration can fan out.
func (r *Resolver) PostLow(p content.Post) []invalidation.Item {
	m := r.urls
	c := []invalidation.Candidate{
		prefix(m.PostTypeArchiveURL(p.Type)),
		file(m.SiteFeedURL()),
		file(m.PostFeedURL(p)),
	}
	for _, t := range p.Terms {
		c = append(c,
			prefix(m.TermURL(t)),
			file(m.TermFeedURL(t)),
			file(m.TermRESTURL(t)),
			file(m.TaxonomyRESTURL(t.Taxonomy)),
		)
	}
	if p.Author != nil && m.SupportsAuthor(p.Type) {
		c = append(c,
			prefix(m.AuthorURL(*p.Author)),
			file(m.AuthorFeedURL(*p.Author)),
			file(m.AuthorRESTURL(*p.Author)),
		)
	}
	c = append(c, file(m.TaxonomiesRESTURL()))
	return invalidation.CreateItems(c)
}

// TermHigh is the term's own archive, the home page and its REST endpoints.
// Deleted terms resolve the same way so the cached responses get evicted.
func (r *Resolver) TermHigh(t content.Term) []invalidation.Item {
	m := r.urls
	return invalidation.CreateItems([]invalidation.Candidate{
		file(m.TermURL(t)),
		file(m.HomeURL()),
		file(m.TermRESTURL(t)),
		file(m.TaxonomyRESTURL(t.Taxonomy)),
	})
}

func (r *Resolver) TermLow(t content.Term) []invalidation.Item {
	m := r.urls
	c := []invalidation.Candidate{
		prefix(m.TermURL(t)),
		file(m.TermFeedURL(t)),
	}
	if t.Parent != nil {
		c = append(c,
			prefix(m.TermURL(*t.Parent)),
			file(m.TermFeedURL(*t.Parent)),
		)
	}
	c = append(c, file(m.SiteFeedURL()))
	return invalidation.CreateItems(c)
}

// restRoot only contributes the API root when the type is REST-exposed.
func restRoot(m content.Mapper, collection string) invalidation.Candidate {
	if collection == "" {
		return invalidation.Candidate{}
	}
	return file(m.RESTRootURL())
}

func file(u string) invalidation.Candidate {
	return invalidation.Candidate{URL: u, Kind: invalidation.File}
}

func prefix(u string) invalidation.Candidate {
	return invalidation.Candidate{URL: u, Kind: invalidation.Prefix}
}
