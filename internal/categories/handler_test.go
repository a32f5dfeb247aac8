package categories

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.Tokens) {
	t.Helper()
	svc, _, _ := newTestService(t)
	tokens := auth.NewTokens("secret", time.Hour)
	mw := auth.Middleware{Tokens: tokens}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	NewHandler(svc.logger, svc, mw).MountRoutes(r)
	return r, tokens
}

func bearer(t *testing.T, tokens *auth.Tokens, roles ...string) string {
	t.Helper()
	raw, err := tokens.Issue(shared.Principal{UserID: 1, Username: "tester", Roles: roles})
	require.NoError(t, err)
	return "Bearer " + raw
}

func TestHandlerCreateListAndDelete(t *testing.T) {
	router, tokens := newTestRouter(t)
	admin := bearer(t, tokens, shared.RoleUser, shared.RoleAdmin)
	user := bearer(t, tokens, shared.RoleUser)

	do := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/categorias", `{"name":"Marvel"}`, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(http.MethodPost, "/categorias", `{"name":"Marvel"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "marvel", created.Name)

	rec = do(http.MethodPost, "/categorias", `{"name":"MARVEL"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")

	rec = do(http.MethodGet, "/categorias?sortBy=secret:ASC", "", user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/categorias?limit=5", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	var page shared.Page[Category]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Meta.TotalItems)
	assert.Equal(t, 5, page.Meta.ItemsPerPage)

	rec = do(http.MethodGet, "/categorias/not-a-uuid", "", user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodDelete, "/categorias/"+created.ID.String(), "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(http.MethodGet, "/categorias/"+created.ID.String(), "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.IsDeleted)

	rec = do(http.MethodDelete, "/categorias/"+created.ID.String()+"/hard", "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(http.MethodGet, "/categorias/"+created.ID.String(), "", user)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
