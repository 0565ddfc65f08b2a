package entities

import (
	"errors"
	"strings"
	"time"
)

type ReadingStatus string

const (
	StatusWantToRead ReadingStatus = "want_to_read"
	StatusReading    ReadingStatus = "reading"
	StatusRead       ReadingStatus = "read"
)

// DefaultStatus is assigned to books created without a status.
const DefaultStatus = StatusWantToRead

var ErrUnknownStatus = errors.New("unknown reading status")

// ReadingStatuses lists the statuses in shelf order.
var ReadingStatuses = []ReadingStatus{StatusWantToRead, StatusReading, StatusRead}

// SuggestedGenres are offered by the add and edit forms. Genre stays free text.
var SuggestedGenres = []string{"Romance", "Science Fiction", "Fantasy", "Biography"}

var statusLabels = map[ReadingStatus]string{
	StatusWantToRead: "Want to read",
	StatusReading:    "Reading",
	StatusRead:       "Read",
}

// statusAliases maps every accepted spelling, lowercased, to its status.
// Includes the Portuguese labels used by earlier clients.
var statusAliases = map[string]ReadingStatus{
	"want_to_read": StatusWantToRead,
	"want to read": StatusWantToRead,
	"quero ler":    StatusWantToRead,
	"reading":      StatusReading,
	"lendo":        StatusReading,
	"read":         StatusRead,
	"lido":         StatusRead,
}

// ParseReadingStatus accepts canonical values and display labels, case-insensitively.
func ParseReadingStatus(s string) (ReadingStatus, error) {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", ErrUnknownStatus
}

// Label returns the display label for the status.
func (s ReadingStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s ReadingStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

type Book struct {
	ID        string        `gorm:"primaryKey;size:32" json:"id"`
	OwnerID   uint          `gorm:"index:idx_books_owner_created,priority:1;index:idx_books_owner_title,priority:1;not null" json:"owner_id"`
	Title     string        `gorm:"size:512;index:idx_books_owner_title,priority:2" json:"title"`
	Author    string        `gorm:"size:256" json:"author"`
	Genre     string        `gorm:"index;size:128" json:"genre"`
	Status    ReadingStatus `gorm:"index;size:20" json:"status"`
	Favorite  bool          `gorm:"index" json:"favorite"`
	Pages     *int          `json:"pages,omitempty"`
	Summary   string        `gorm:"type:text" json:"summary,omitempty"`
	CreatedAt time.Time     `gorm:"index:idx_books_owner_created,priority:2" json:"created_at"`
	UpdatedAt *time.Time    `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`
}

func (Book) TableName() string {
	return "books"
}

// LibraryStats summarises one owner's shelf.
type LibraryStats struct {
	Total      int64 `json:"total"`
	Read       int64 `json:"read"`
	Reading    int64 `json:"reading"`
	WantToRead int64 `json:"want_to_read"`
	Favorites  int64 `json:"favorites"`
}

// ToRead is everything not yet finished.
func (s LibraryStats) ToRead() int64 {
	return s.Total - s.Read
}
