package http

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/screens"
)

type profileResult struct {
	Phase screens.Phase       `json:"phase"`
	Data  screens.ProfileData `json:"data"`
}

type activityResult struct {
	Data    []entities.AuditEvent `json:"data"`
	Total   int64                 `json:"total"`
	Limit   int                   `json:"limit"`
	HasMore bool                  `json:"has_more"`
}

func TestProfile_Get(t *testing.T) {
	env := setupEnv(t)
	user, token := env.signUp(t, "ana@example.com")
	env.seed(t, user.ID, 3, func(i int, b *entities.Book) {
		if i == 1 {
			b.Status = entities.StatusRead
		}
	})

	w := env.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[profileResult](t, w)
	assert.Equal(t, screens.PhaseReady, res.Phase)
	assert.Equal(t, "ana@example.com", res.Data.User.Email)
	assert.Equal(t, int64(3), res.Data.Stats.Total)
	assert.Equal(t, int64(2), res.Data.ToRead)
}

func TestProfile_UpdateDisplayName(t *testing.T) {
	env := setupEnv(t)
	_, token := env.signUp(t, "ana@example.com")

	w := env.do(t, http.MethodPut, "/api/profile", token, gin.H{"display_name": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Details, "display_name")

	w = env.do(t, http.MethodPut, "/api/profile", token, gin.H{"display_name": " Ana Maria "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Ana Maria", decode[profileResult](t, w).Data.User.DisplayName)

	w = env.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Contains(t, w.Body.String(), `"display_name":"Ana Maria"`)
}

func TestActivity_ListsOwnEvents(t *testing.T) {
	env := setupEnv(t)
	_, token := env.signUp(t, "ana@example.com")
	_, bobToken := env.signUp(t, "bob@example.com")

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/books", token, gin.H{"title": "Dune", "author": "Frank Herbert"}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/profile", token, gin.H{"display_name": "Ana Maria"}).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/books", bobToken, gin.H{"title": "Emma", "author": "Jane Austen"}).Code)
	env.audit.Wait()

	w := env.do(t, http.MethodGet, "/api/activity", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[activityResult](t, w)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, defaultActivityLimit, res.Limit)
	assert.False(t, res.HasMore)

	w = env.do(t, http.MethodGet, "/api/activity?type=book&limit=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[activityResult](t, w)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "book_create", res.Data[0].Action)
	assert.Equal(t, "Dune", res.Data[0].Description)
	assert.Len(t, res.Data[0].RequestID, 36)

	w = env.do(t, http.MethodGet, "/api/activity?limit=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
