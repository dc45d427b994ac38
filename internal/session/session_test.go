package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pokedex/internal/httpx"
)

type mockRepo struct {
	mock.Mock
	cleanups atomic.Int64
}

func (m *mockRepo) Create(ctx context.Context, s *Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockRepo) GetByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(Session), args.Error(1)
}

func (m *mockRepo) ListByUserID(ctx context.Context, userID string) ([]Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Session), args.Error(1)
}

func (m *mockRepo) DeleteForUser(ctx context.Context, sessionID, userID string) error {
	return m.Called(ctx, sessionID, userID).Error(0)
}

func (m *mockRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *mockRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockRepo) CleanupExpired(context.Context) (int64, error) {
	m.cleanups.Add(1)
	return 0, nil
}

type memBlacklist struct {
	cleanups atomic.Int64
}

func (b *memBlacklist) AddToken(context.Context, string, string, time.Time) error { return nil }
func (b *memBlacklist) IsBlacklisted(context.Context, string) (bool, error)      { return false, nil }
func (b *memBlacklist) CleanupExpired(context.Context) (int64, error) {
	b.cleanups.Add(1)
	return 0, nil
}

func withUser(r *http.Request, id string) *http.Request {
	return r.WithContext(httpx.ContextWithUser(r.Context(), id, "USER"))
}

func TestHTTPHandler_ListSessions(t *testing.T) {
	repo := new(mockRepo)
	handler := NewHTTPHandler(NewService(repo, &memBlacklist{}))
	repo.On("ListByUserID", mock.Anything, "u1").Return([]Session{
		{ID: "s1", UserID: "u1", RefreshTokenHash: "secret-hash", UserAgent: "pokedex-cli"},
	}, nil)

	w := httptest.NewRecorder()
	handler.ListSessions(w, withUser(httptest.NewRequest(http.MethodGet, "/v1/me/sessions", nil), "u1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-hash")
	var body struct {
		Data []Session `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "pokedex-cli", body.Data[0].UserAgent)
}

func TestHTTPHandler_DeleteSession(t *testing.T) {
	repo := new(mockRepo)
	handler := NewHTTPHandler(NewService(repo, &memBlacklist{}))

	t.Run("own session", func(t *testing.T) {
		repo.On("DeleteForUser", mock.Anything, "s1", "u1").Return(nil).Once()
		r := withUser(httptest.NewRequest(http.MethodDelete, "/v1/me/sessions/s1", nil), "u1")
		r.SetPathValue("id", "s1")
		w := httptest.NewRecorder()
		handler.DeleteSession(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("someone else's session", func(t *testing.T) {
		repo.On("DeleteForUser", mock.Anything, "s2", "u1").Return(ErrNotFound).Once()
		r := withUser(httptest.NewRequest(http.MethodDelete, "/v1/me/sessions/s2", nil), "u1")
		r.SetPathValue("id", "s2")
		w := httptest.NewRecorder()
		handler.DeleteSession(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.DeleteSession(w, httptest.NewRequest(http.MethodDelete, "/v1/me/sessions/s1", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	repo.AssertExpectations(t)
}

func TestService_RunCleanup(t *testing.T) {
	repo := new(mockRepo)
	bl := &memBlacklist{}
	svc := NewService(repo, bl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunCleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return repo.cleanups.Load() > 0 && bl.cleanups.Load() > 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestPostgresRepo(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("Skipping test: TEST_DB_DSN not set")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("Skipping test: cannot connect to test database: %v", err)
	}
	t.Cleanup(db.Close)

	var userID string
	err = db.QueryRow(ctx, `INSERT INTO users (id, email, password_hash) VALUES (gen_random_uuid(), $1, 'x') RETURNING id`,
		"session-"+time.Now().Format("150405.000000000")+"@example.com").Scan(&userID)
	require.NoError(t, err)

	repo := NewPostgresRepo(db, 5*time.Second)
	s := &Session{UserID: userID, RefreshTokenHash: "hash-" + userID, UserAgent: "test", IPAddress: "127.0.0.1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, s))
	assert.NotEmpty(t, s.ID)

	got, err := repo.GetByTokenHash(ctx, s.RefreshTokenHash)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	assert.ErrorIs(t, repo.DeleteForUser(ctx, s.ID, "00000000-0000-0000-0000-000000000000"), ErrNotFound)
	require.NoError(t, repo.DeleteForUser(ctx, s.ID, userID))

	_, err = repo.GetByTokenHash(ctx, s.RefreshTokenHash)
	assert.ErrorIs(t, err, ErrNotFound)
}
