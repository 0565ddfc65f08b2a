// Package query composes the declarative book queries shared by the list,
// favorites and search screens.
//
// A Selection captures what the user picked (text, genre, status, sort). Build
// turns it into a Query: equality filters, one order clause, a page limit and
// an optional start-after cursor. Free text is never sent to the store; it is
// applied to each fetched page with FilterText.
package query

import (
	"github.com/mrlokans/library/internal/entities"
)

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 10

type Field string

const (
	FieldID        Field = "id"
	FieldOwner     Field = "owner_id"
	FieldGenre     Field = "genre"
	FieldStatus    Field = "status"
	FieldFavorite  Field = "favorite"
	FieldCreatedAt Field = "created_at"
	FieldTitle     Field = "title"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter is an equality predicate.
type Filter struct {
	Field Field `json:"field"`
	Value any   `json:"value"`
}

type Order struct {
	Field     Field     `json:"field"`
	Direction Direction `json:"direction"`
}

// Query describes a collection read. Stores execute it; nothing here touches a database.
type Query struct {
	Filters    []Filter `json:"filters"`
	Order      Order    `json:"order"`
	Limit      int      `json:"limit"`
	StartAfter *Cursor  `json:"start_after,omitempty"`
}

// SortableField reports whether f can be used in an order clause.
func SortableField(f Field) bool {
	return f == FieldCreatedAt || f == FieldTitle
}

// ValidDirection reports whether d is asc or desc.
func ValidDirection(d Direction) bool {
	return d == Asc || d == Desc
}

// Build composes the query for one page of sel, scoped to ownerID.
func Build(ownerID uint, sel Selection, pageSize int, after *Cursor) Query {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	sel = sel.normalized()

	filters := []Filter{{Field: FieldOwner, Value: ownerID}}
	if sel.Genre != "" {
		filters = append(filters, Filter{Field: FieldGenre, Value: sel.Genre})
	}
	if sel.Status != "" {
		filters = append(filters, Filter{Field: FieldStatus, Value: sel.Status})
	}
	if sel.FavoritesOnly {
		filters = append(filters, Filter{Field: FieldFavorite, Value: true})
	}

	return Query{
		Filters:    filters,
		Order:      Order{Field: sel.SortField, Direction: sel.Direction},
		Limit:      pageSize,
		StartAfter: after,
	}
}

// ForBook is the single-document query used by live detail views.
func ForBook(ownerID uint, bookID string) Query {
	return Query{
		Filters: []Filter{
			{Field: FieldOwner, Value: ownerID},
			{Field: FieldID, Value: bookID},
		},
		Order: Order{Field: FieldCreatedAt, Direction: Desc},
		Limit: 1,
	}
}

// OwnerID returns the owner filter value, or 0 when the query has none.
func (q Query) OwnerID() uint {
	for _, f := range q.Filters {
		if f.Field == FieldOwner {
			if id, ok := f.Value.(uint); ok {
				return id
			}
		}
	}
	return 0
}

// Filter returns the value of the equality filter on field, if present.
func (q Query) Filter(field Field) (any, bool) {
	for _, f := range q.Filters {
		if f.Field == field {
			return f.Value, true
		}
	}
	return nil, false
}

// Matches evaluates the equality filters against b in memory.
func (q Query) Matches(b *entities.Book) bool {
	for _, f := range q.Filters {
		switch f.Field {
		case FieldID:
			if v, _ := f.Value.(string); v != b.ID {
				return false
			}
		case FieldOwner:
			if v, _ := f.Value.(uint); v != b.OwnerID {
				return false
			}
		case FieldGenre:
			if v, _ := f.Value.(string); v != b.Genre {
				return false
			}
		case FieldStatus:
			if v, _ := f.Value.(entities.ReadingStatus); v != b.Status {
				return false
			}
		case FieldFavorite:
			if v, _ := f.Value.(bool); v != b.Favorite {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Page is one fetched page.
type Page struct {
	Books   []entities.Book `json:"books"`
	Next    *Cursor         `json:"-"`
	HasMore bool            `json:"has_more"`
}

// NewPage wraps the records returned for q. HasMore is true when the store
// filled the whole limit, so a further page may exist.
func NewPage(q Query, books []entities.Book) Page {
	p := Page{Books: books, HasMore: q.Limit > 0 && len(books) == q.Limit}
	if len(books) > 0 {
		p.Next = CursorFor(books[len(books)-1], q.Order.Field)
	}
	return p
}
