package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), max, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body, ctype := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ctype)
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestSaveAcceptsImagesByContent(t *testing.T) {
	s := newTestStore(t, 0)
	file, err := s.Save(context.Background(), fileHeader(t, "Spider.PNG", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, ".png", filepath.Ext(file.Filename))
	assert.Equal(t, int64(len(pngHeader)), file.Size)

	f, ctype, err := s.Open(file.Filename)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "image/png", ctype)
}

func TestSaveRejectsTypeAndSize(t *testing.T) {
	s := newTestStore(t, 32)
	_, err := s.Save(context.Background(), fileHeader(t, "notes.png", []byte("just some text, not an image")))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = s.Save(context.Background(), fileHeader(t, "big.png", append(pngHeader, make([]byte, 64)...)))
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestOpenAndRemoveGuardPaths(t *testing.T) {
	s := newTestStore(t, 0)
	_, _, err := s.Open("../etc/passwd")
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, _, err = s.Open("missing.png")
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	file, err := s.Save(context.Background(), fileHeader(t, "a.png", pngHeader))
	require.NoError(t, err)
	require.NoError(t, s.Remove(context.Background(), "http://localhost:3000/v1/storage/"+file.Filename))
	_, err = os.Stat(filepath.Join(s.dir, file.Filename))
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, s.Remove(context.Background(), file.Filename), httpx.ErrNotFound)
}

func TestNameFromURL(t *testing.T) {
	assert.Equal(t, "abc.png", NameFromURL("http://localhost:3000/v1/storage/abc.png"))
	assert.Equal(t, "abc.png", NameFromURL("abc.png"))
}

func TestHandlerUploadAndDownload(t *testing.T) {
	s := newTestStore(t, 0)
	tokens := auth.NewTokens("secret", time.Hour)
	mw := auth.Middleware{Tokens: tokens}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), s, mw, "/v1").MountRoutes(r)

	token, err := tokens.Issue(shared.Principal{UserID: 1, Roles: []string{shared.RoleAdmin}})
	require.NoError(t, err)

	body, ctype := multipartBody(t, "funko.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/storage", body)
	req.Host = "api.local"
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var file File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
	assert.Equal(t, "http://api.local/v1/storage/"+file.Filename, file.URL)
	assert.Equal(t, "funko.png", file.OriginalName)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/"+file.Filename, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	body, ctype = multipartBody(t, "funko.png", pngHeader)
	req = httptest.NewRequest(http.MethodPost, "/storage", body)
	req.Header.Set("Content-Type", ctype)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
