package query

import "github.com/mrlokans/library/internal/entities"

// Selection is the structured filter and sort configuration picked on a screen.
// The zero value lists everything newest first.
type Selection struct {
	Text          string                 `json:"text,omitempty"`
	Genre         string                 `json:"genre,omitempty"`
	Status        entities.ReadingStatus `json:"status,omitempty"`
	FavoritesOnly bool                   `json:"favorites_only,omitempty"`
	SortField     Field                  `json:"sort_field"`
	Direction     Direction              `json:"direction"`
}

// Favorites selects only favorited books.
func Favorites() Selection {
	return Selection{FavoritesOnly: true}.normalized()
}

func (s Selection) normalized() Selection {
	if !SortableField(s.SortField) {
		s.SortField = FieldCreatedAt
		s.Direction = Desc
	}
	if !ValidDirection(s.Direction) {
		if s.SortField == FieldTitle {
			s.Direction = Asc
		} else {
			s.Direction = Desc
		}
	}
	return s
}

// Normalized returns s with the sort defaults filled in.
func (s Selection) Normalized() Selection {
	return s.normalized()
}

// ToggleGenre selects g, or clears the genre filter when g is already selected.
func (s Selection) ToggleGenre(g string) Selection {
	if s.Genre == g {
		s.Genre = ""
	} else {
		s.Genre = g
	}
	return s
}

// ToggleStatus selects st, or clears the status filter when st is already selected.
func (s Selection) ToggleStatus(st entities.ReadingStatus) Selection {
	if s.Status == st {
		s.Status = ""
	} else {
		s.Status = st
	}
	return s
}

// ToggleDirection flips the sort direction.
func (s Selection) ToggleDirection() Selection {
	s = s.normalized()
	if s.Direction == Asc {
		s.Direction = Desc
	} else {
		s.Direction = Asc
	}
	return s
}

// SortBy switches the sort field. Choosing the active field flips the direction;
// a new field starts at its natural direction (title A-Z, newest first).
// Unsortable fields are ignored.
func (s Selection) SortBy(f Field) Selection {
	s = s.normalized()
	if !SortableField(f) {
		return s
	}
	if s.SortField == f {
		return s.ToggleDirection()
	}
	s.SortField = f
	if f == FieldTitle {
		s.Direction = Asc
	} else {
		s.Direction = Desc
	}
	return s
}

// WithText replaces the free-text query.
func (s Selection) WithText(text string) Selection {
	s.Text = text
	return s
}
