package screens

import (
	"context"
	"strings"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/session"
	"github.com/mrlokans/library/internal/validation"
)

// BookInput is what the add and edit forms submit.
type BookInput struct {
	Title   string `json:"title" validate:"notblank,max=512"`
	Author  string `json:"author" validate:"notblank,max=256"`
	Genre   string `json:"genre" validate:"max=128"`
	Status  string `json:"status"`
	Pages   *int   `json:"pages" validate:"omitempty,gte=0"`
	Summary string `json:"summary" validate:"max=10000"`
}

// InputFromBook pre-fills the form from an existing record.
func InputFromBook(b *entities.Book) BookInput {
	return BookInput{
		Title:   b.Title,
		Author:  b.Author,
		Genre:   b.Genre,
		Status:  string(b.Status),
		Pages:   b.Pages,
		Summary: b.Summary,
	}
}

type StatusOption struct {
	Value entities.ReadingStatus `json:"value"`
	Label string                 `json:"label"`
}

// StatusOptions lists the reading statuses with their labels.
func StatusOptions() []StatusOption {
	opts := make([]StatusOption, 0, len(entities.ReadingStatuses))
	for _, s := range entities.ReadingStatuses {
		opts = append(opts, StatusOption{Value: s, Label: s.Label()})
	}
	return opts
}

// FormData is rendered by the add and edit forms.
type FormData struct {
	Input    BookInput      `json:"input"`
	Book     *entities.Book `json:"book,omitempty"`
	Genres   []string       `json:"genres"`
	Statuses []StatusOption `json:"statuses"`
	Saved    bool           `json:"saved,omitempty"`
}

// BookForm is the add form when bookID is empty and the edit form otherwise.
type BookForm struct {
	*view[FormData]

	deps    Deps
	session session.Session
	bookID  string
}

func NewAddForm(deps Deps, sess session.Session) *BookForm {
	return newBookForm(deps, sess, "")
}

func NewEditForm(deps Deps, sess session.Session, bookID string) *BookForm {
	return newBookForm(deps, sess, bookID)
}

func newBookForm(deps Deps, sess session.Session, bookID string) *BookForm {
	return &BookForm{
		view: newView(FormData{
			Input:    BookInput{Status: string(entities.DefaultStatus)},
			Genres:   entities.SuggestedGenres,
			Statuses: StatusOptions(),
		}),
		deps:    deps.withDefaults(),
		session: sess,
		bookID:  bookID,
	}
}

// Editing reports whether the form edits an existing book.
func (f *BookForm) Editing() bool {
	return f.bookID != ""
}

// Load readies the form. The edit form is pre-filled from the stored book.
func (f *BookForm) Load(ctx context.Context) error {
	if !f.Editing() {
		f.update(func(s *State[FormData]) { s.Phase = PhaseReady })
		return nil
	}

	owner, ok := f.session.OwnerID()
	if !ok {
		f.fail(alertFor(ErrNoSession))
		return ErrNoSession
	}
	book, err := f.deps.Books.Get(ctx, owner, f.bookID)
	if err != nil {
		f.fail(alertFor(err))
		return err
	}
	f.update(func(s *State[FormData]) {
		s.Phase = PhaseReady
		s.Data.Input = InputFromBook(book)
		s.Data.Book = book
		s.Alert = nil
	})
	return nil
}

// Submit validates in and saves it. Nothing reaches the store when
// validation fails.
func (f *BookForm) Submit(ctx context.Context, in BookInput) (*entities.Book, error) {
	f.update(func(s *State[FormData]) { s.Data.Input = in })

	status, err := f.validate(in)
	if err != nil {
		f.alert(alertFor(err))
		return nil, err
	}

	owner, ok := f.session.OwnerID()
	if !ok {
		f.alert(alertFor(ErrNoSession))
		return nil, ErrNoSession
	}

	var book *entities.Book
	if f.Editing() {
		book, err = f.saveEdit(ctx, owner, in, status)
	} else {
		book, err = f.saveNew(ctx, owner, in, status)
	}
	if err != nil {
		f.deps.Log.Error("failed to save book", "owner_id", owner, "book_id", f.bookID, "error", err)
		f.alert(alertFor(err))
		return nil, err
	}

	f.update(func(s *State[FormData]) {
		s.Phase = PhaseReady
		s.Data.Book = book
		s.Data.Input = InputFromBook(book)
		s.Data.Saved = true
		s.Alert = nil
	})
	return book, nil
}

func (f *BookForm) validate(in BookInput) (entities.ReadingStatus, error) {
	err := f.deps.Validator.Struct(in)
	var fields map[string]string
	if verr, ok := err.(*validation.Error); ok {
		fields = verr.Fields
	} else if err != nil {
		return "", err
	}

	status := entities.DefaultStatus
	if strings.TrimSpace(in.Status) != "" {
		parsed, perr := entities.ParseReadingStatus(in.Status)
		if perr != nil {
			if fields == nil {
				fields = make(map[string]string)
			}
			fields["status"] = "must be one of: want_to_read, reading, read"
		}
		status = parsed
	}

	if len(fields) > 0 {
		return "", &validation.Error{Fields: fields}
	}
	return status, nil
}

func (f *BookForm) saveNew(ctx context.Context, owner uint, in BookInput, status entities.ReadingStatus) (*entities.Book, error) {
	book := &entities.Book{
		OwnerID: owner,
		Title:   strings.TrimSpace(in.Title),
		Author:  strings.TrimSpace(in.Author),
		Genre:   strings.TrimSpace(in.Genre),
		Status:  status,
		Pages:   in.Pages,
		Summary: in.Summary,
	}
	if err := f.deps.Books.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (f *BookForm) saveEdit(ctx context.Context, owner uint, in BookInput, status entities.ReadingStatus) (*entities.Book, error) {
	fields := map[string]any{
		"title":      strings.TrimSpace(in.Title),
		"author":     strings.TrimSpace(in.Author),
		"genre":      strings.TrimSpace(in.Genre),
		"status":     status,
		"pages":      in.Pages,
		"summary":    in.Summary,
		"updated_at": f.deps.now().UTC(),
	}
	if err := f.deps.Books.UpdateFields(ctx, owner, f.bookID, fields); err != nil {
		return nil, err
	}
	return f.deps.Books.Get(ctx, owner, f.bookID)
}
