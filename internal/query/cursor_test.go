package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/entities"
)

func TestCursor_RoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	c := CursorFor(entities.Book{ID: "bk_x", CreatedAt: created}, FieldCreatedAt)

	decoded, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c, decoded)

	ts, err := decoded.Time()
	require.NoError(t, err)
	assert.True(t, created.Equal(ts))
}

func TestDecodeCursor(t *testing.T) {
	c, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = DecodeCursor("not base64!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor((&Cursor{Value: "x"}).Encode())
	assert.ErrorIs(t, err, ErrInvalidCursor, "cursor without id is rejected")

	var nilCursor *Cursor
	assert.Equal(t, "", nilCursor.Encode())
}

func TestCursor_TimeRejectsTitles(t *testing.T) {
	_, err := (&Cursor{Value: "Dune", ID: "bk_1"}).Time()
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
