// Package content models the change events raised by the content-management
// system and the entity-to-URL primitives the resolver consumes.
package content

// EntityType names what changed.
type EntityType string

const (
	EntityPost EntityType = "post"
	EntityTerm EntityType = "term"
)

// Status is a post lifecycle state.
type Status string

const (
	StatusPublish   Status = "publish"
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPrivate   Status = "private"
	StatusFuture    Status = "future"
	StatusTrash     Status = "trash"
	StatusAutoDraft Status = "auto-draft"
	StatusInherit   Status = "inherit"
)

// Action qualifies an event beyond its state transition.
type Action string

const (
	ActionTransition Action = ""
	ActionCreated    Action = "created"
	ActionEdited     Action = "edited"
	ActionDeleted    Action = "deleted"
)

// TypeRevision is the post type the CMS uses for stored revisions.
const TypeRevision = "revision"

type Author struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

type Term struct {
	ID       int64  `json:"id"`
	Taxonomy string `json:"taxonomy"`
	Slug     string `json:"slug"`
	// Link overrides the mapped archive URL when the CMS supplies one.
	Link   string `json:"link,omitempty"`
	Parent *Term  `json:"parent,omitempty"`
}

type Post struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Slug string `json:"slug"`
	// Permalink is the canonical URL as computed by the CMS.
	Permalink string  `json:"permalink"`
	Status    Status  `json:"status"`
	Autosave  bool    `json:"autosave,omitempty"`
	Author    *Author `json:"author,omitempty"`
	Terms     []Term  `json:"terms,omitempty"`
}

// ChangeEvent is raised synchronously by the CMS on a state transition or a
// deletion. It is never persisted.
type ChangeEvent struct {
	EntityType    EntityType `json:"entity_type"`
	Post          *Post      `json:"post,omitempty"`
	Term          *Term      `json:"term,omitempty"`
	PreviousState Status     `json:"previous_state,omitempty"`
	NewState      Status     `json:"new_state,omitempty"`
	Action        Action     `json:"action,omitempty"`
}

// Canonical reports whether the event touches externally visible URLs. Post
// events count only when published is the origin or destination state and
// the entity is neither an autosave nor a revision. Term events always count.
func (e ChangeEvent) Canonical() bool {
	switch e.EntityType {
	case EntityPost:
		if e.Post == nil || e.Post.Autosave || e.Post.Type == TypeRevision {
			return false
		}
		return e.PreviousState == StatusPublish || e.NewState == StatusPublish
	case EntityTerm:
		return e.Term != nil
	default:
		return false
	}
}
