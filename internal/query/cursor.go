package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/mrlokans/library/internal/entities"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor marks the last record of a page: its sort value plus its id, which
// breaks ties between records sharing a sort value.
type Cursor struct {
	Value string `json:"v"`
	ID    string `json:"id"`
}

// CursorFor builds the start-after cursor for b under the given sort field.
func CursorFor(b entities.Book, field Field) *Cursor {
	c := &Cursor{ID: b.ID}
	switch field {
	case FieldTitle:
		c.Value = b.Title
	default:
		c.Value = b.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return c
}

// Time parses the cursor value as a creation timestamp.
func (c *Cursor) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, c.Value)
	if err != nil {
		return time.Time{}, ErrInvalidCursor
	}
	return t, nil
}

// Encode returns the opaque form handed to clients. A nil cursor encodes to "".
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a client cursor. An empty string is no cursor.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	if c.ID == "" {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}
