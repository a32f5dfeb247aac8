package users

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/orders"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	mu     sync.Mutex
	users  map[int64]User
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[int64]User), nextID: 1}
}

func (m *mockRepository) List(ctx context.Context, q shared.ListQuery) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for id := int64(1); id < m.nextID; id++ {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
	}
	return u, nil
}

func (m *mockRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", username, httpx.ErrNotFound)
}

func (m *mockRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) Create(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func (m *mockRepository) SoftDelete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	u.IsDeleted = true
	m.users[id] = u
	return nil
}

type stubOrders struct {
	placed []orders.Request
}

func (s *stubOrders) ListByUser(ctx context.Context, userID int64) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, req := range s.placed {
		if req.UserID == userID {
			out = append(out, orders.Order{ID: primitive.NewObjectID(), UserID: req.UserID})
		}
	}
	return out, nil
}

func (s *stubOrders) Create(ctx context.Context, req orders.Request) (orders.Order, error) {
	s.placed = append(s.placed, req)
	return orders.Order{ID: primitive.NewObjectID(), UserID: req.UserID}, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func newTestService(t *testing.T) (*Service, *mockRepository, *auth.Tokens) {
	t.Helper()
	repo := newMockRepository()
	tokens := auth.NewTokens("secret", time.Hour)
	svc := NewService(repo, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.cost = bcrypt.MinCost
	return svc, repo, tokens
}

func signUp(username string) SignUpRequest {
	return SignUpRequest{
		Name:     "Peter",
		LastName: "Parker",
		Email:    username + "@example.com",
		Username: username,
		Password: "s3cret!",
	}
}

// ============================================================================
// SERVICE TESTS
// ============================================================================

func TestSignUpIssuesUserToken(t *testing.T) {
	svc, repo, tokens := newTestService(t)

	raw, err := svc.SignUp(context.Background(), signUp("peter"))
	require.NoError(t, err)

	principal, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "peter", principal.Username)
	assert.Equal(t, []string{shared.RoleUser}, principal.Roles)

	stored := repo.users[principal.UserID]
	assert.NotEqual(t, "s3cret!", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret!")))
}

func TestSignUpRejectsTakenUsernameOrEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.SignUp(ctx, signUp("peter"))
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, signUp("PETER"))
	assert.ErrorIs(t, err, httpx.ErrDuplicate)

	other := signUp("miles")
	other.Email = "Peter@Example.com"
	_, err = svc.SignUp(ctx, other)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestSignIn(t *testing.T) {
	svc, _, tokens := newTestService(t)
	ctx := context.Background()
	_, err := svc.SignUp(ctx, signUp("peter"))
	require.NoError(t, err)

	raw, err := svc.SignIn(ctx, SignInRequest{Username: "peter", Password: "s3cret!"})
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, SignInRequest{Username: "peter", Password: "wrong"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)

	_, err = svc.SignIn(ctx, SignInRequest{Username: "nobody", Password: "s3cret!"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, svc.Delete(ctx, 1))
	_, err = svc.SignIn(ctx, SignInRequest{Username: "peter", Password: "s3cret!"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin@example.com", "admin123"))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin@example.com", "admin123"))
	require.Len(t, repo.users, 1)
	assert.ElementsMatch(t, []string{shared.RoleUser, shared.RoleAdmin}, repo.users[1].Roles)
}

// ============================================================================
// HANDLER TESTS
// ============================================================================

func TestHandlerAuthAndAccountRoutes(t *testing.T) {
	svc, _, tokens := newTestService(t)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin", "admin@example.com", "admin123"))
	book := &stubOrders{}
	mw := auth.Middleware{Tokens: tokens}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	NewHandler(svc.logger, svc, book, mw).MountRoutes(r)

	do := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	tokenFrom := func(rec *httptest.ResponseRecorder) string {
		var resp TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.AccessToken)
		return resp.AccessToken
	}

	rec := do(http.MethodPost, "/auth/signup", `{"name":"Peter","lastName":"Parker","email":"bad","username":"peter","password":"s3cret!"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/auth/signup", `{"name":"Peter","lastName":"Parker","email":"peter@example.com","username":"peter","password":"s3cret!"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := tokenFrom(rec)

	rec = do(http.MethodPost, "/auth/signin", `{"username":"peter","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(http.MethodPost, "/auth/signin", `{"username":"admin","password":"admin123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	admin := tokenFrom(rec)

	rec = do(http.MethodGet, "/users/me", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	var me User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "peter", me.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(http.MethodGet, "/users", "", user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(http.MethodGet, "/users", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var page shared.Page[User]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Meta.TotalItems)

	order := `{"userId":999,"customer":{"fullName":"Peter Parker","email":"peter@example.com","phone":"600",
"address":{"street":"Ingram St","number":"20","city":"New York","province":"NY","country":"USA","postalCode":"11375"}},
"lines":[{"productId":1,"price":16.99,"quantity":1}]}`
	rec = do(http.MethodPost, "/users/me/pedidos", order, user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, book.placed, 1)
	assert.Equal(t, me.ID, book.placed[0].UserID)

	rec = do(http.MethodGet, "/users/me/pedidos", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	rec = do(http.MethodGet, "/users/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(http.MethodDelete, fmt.Sprintf("/users/%d", me.ID), "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The token outlives the account but no longer grants access.
	rec = do(http.MethodPost, "/users/me/pedidos", order, user)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, book.placed, 1)
	rec = do(http.MethodGet, "/users/me/pedidos", "", user)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(http.MethodGet, "/users/me", "", user)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActiveRejectsDeletedAndMissingAccounts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.SignUp(ctx, signUp("peter"))
	require.NoError(t, err)

	u, err := svc.Active(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "peter", u.Username)

	require.NoError(t, svc.Delete(ctx, 1))
	_, err = svc.Active(ctx, 1)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
	_, err = svc.Active(ctx, 42)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
}
