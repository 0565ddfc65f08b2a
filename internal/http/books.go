package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/screens"
)

// BooksController serves the list, detail, add and edit screens.
type BooksController struct {
	deps      screens.Deps
	auditor   Auditor
	heartbeat time.Duration
	log       *slog.Logger
}

func NewBooksController(deps screens.Deps, auditor Auditor, heartbeat time.Duration, log *slog.Logger) *BooksController {
	return &BooksController{deps: deps, auditor: auditor, heartbeat: heartbeat, log: log}
}

// GET /api/books
//
// Returns page one, or the page after ?after= when set.
func (bc *BooksController) List(c *gin.Context) {
	list := screens.NewBookList(bc.deps, currentSession(c))
	defer list.Unmount()

	if err := list.Load(c.Request.Context(), c.Query("after")); err != nil {
		respondErr(c, bc.log, err, list.State().Alert)
		return
	}
	c.JSON(http.StatusOK, list.State())
}

// GET /api/books/stream
func (bc *BooksController) Stream(c *gin.Context) {
	streamScreen[screens.ListData](c, screens.NewBookList(bc.deps, currentSession(c)), bc.heartbeat)
}

// POST /api/books
func (bc *BooksController) Create(c *gin.Context) {
	var in screens.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	form := screens.NewAddForm(bc.deps, currentSession(c))
	book, err := form.Submit(c.Request.Context(), in)
	if err != nil {
		bc.auditFailure(c, "book_create", "", in.Title, err)
		respondErr(c, bc.log, err, form.State().Alert)
		return
	}
	bc.auditor.LogBook(actorFrom(c), "book_create", book.ID, book.Title, nil)
	c.JSON(http.StatusCreated, form.State())
}

// GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	detail := screens.NewBookDetail(bc.deps, currentSession(c), c.Param("id"))
	defer detail.Unmount()

	if err := detail.Load(c.Request.Context()); err != nil {
		respondErr(c, bc.log, err, detail.State().Alert)
		return
	}
	c.JSON(http.StatusOK, detail.State())
}

// GET /api/books/:id/stream
func (bc *BooksController) StreamOne(c *gin.Context) {
	streamScreen[screens.DetailData](c, screens.NewBookDetail(bc.deps, currentSession(c), c.Param("id")), bc.heartbeat)
}

// GET /api/books/:id/edit
func (bc *BooksController) Edit(c *gin.Context) {
	form := screens.NewEditForm(bc.deps, currentSession(c), c.Param("id"))
	if err := form.Load(c.Request.Context()); err != nil {
		respondErr(c, bc.log, err, form.State().Alert)
		return
	}
	c.JSON(http.StatusOK, form.State())
}

// PUT /api/books/:id
func (bc *BooksController) Update(c *gin.Context) {
	var in screens.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	id := c.Param("id")
	form := screens.NewEditForm(bc.deps, currentSession(c), id)
	book, err := form.Submit(c.Request.Context(), in)
	if err != nil {
		bc.auditFailure(c, "book_update", id, in.Title, err)
		respondErr(c, bc.log, err, form.State().Alert)
		return
	}
	bc.auditor.LogBook(actorFrom(c), "book_update", book.ID, book.Title, nil)
	c.JSON(http.StatusOK, form.State())
}

// DELETE /api/books/:id
func (bc *BooksController) Delete(c *gin.Context) {
	detail := screens.NewBookDetail(bc.deps, currentSession(c), c.Param("id"))
	defer detail.Unmount()

	ctx := c.Request.Context()
	if err := detail.Load(ctx); err != nil {
		respondErr(c, bc.log, err, detail.State().Alert)
		return
	}
	book := detail.State().Data.Book
	if err := detail.Delete(ctx); err != nil {
		respondErr(c, bc.log, err, detail.State().Alert)
		return
	}
	bc.auditor.LogDelete(actorFrom(c), "book", book.ID, book.Title)
	c.JSON(http.StatusOK, detail.State())
}

// POST /api/books/:id/favorite
func (bc *BooksController) ToggleFavorite(c *gin.Context) {
	detail := screens.NewBookDetail(bc.deps, currentSession(c), c.Param("id"))
	defer detail.Unmount()

	ctx := c.Request.Context()
	if err := detail.Load(ctx); err != nil {
		respondErr(c, bc.log, err, detail.State().Alert)
		return
	}
	if err := detail.ToggleFavorite(ctx); err != nil {
		respondErr(c, bc.log, err, detail.State().Alert)
		return
	}
	book := detail.State().Data.Book
	bc.auditor.LogBook(actorFrom(c), "book_favorite", book.ID, book.Title, nil)
	c.JSON(http.StatusOK, detail.State())
}

// auditFailure records backend failures. Rejected input is not audited.
func (bc *BooksController) auditFailure(c *gin.Context, action, id, title string, err error) {
	if status, _ := statusFor(err); status != http.StatusInternalServerError {
		return
	}
	bc.auditor.LogBook(actorFrom(c), action, id, title, err)
}
