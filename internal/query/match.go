package query

import (
	"strings"

	"github.com/mrlokans/library/internal/entities"
)

// MatchesText reports whether text occurs, ignoring case, in the book's title
// or author. Empty text matches every book.
func MatchesText(b entities.Book, text string) bool {
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	return strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Author), needle)
}

// FilterText keeps the books matching text, preserving order.
func FilterText(books []entities.Book, text string) []entities.Book {
	if text == "" {
		return books
	}
	out := make([]entities.Book, 0, len(books))
	for _, b := range books {
		if MatchesText(b, text) {
			out = append(out, b)
		}
	}
	return out
}
