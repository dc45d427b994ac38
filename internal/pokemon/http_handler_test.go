package pokemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pokedex/internal/httpx"
)

type mockRunRepo struct {
	mock.Mock
}

func (m *mockRunRepo) CreateRun(ctx context.Context, run *LoadRun) (string, error) {
	args := m.Called(ctx, run)
	return args.String(0), args.Error(1)
}

func (m *mockRunRepo) UpdateRun(ctx context.Context, run *LoadRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRunRepo) ListRuns(ctx context.Context, identity string, limit int) ([]LoadRun, error) {
	args := m.Called(ctx, identity, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]LoadRun), args.Error(1)
}

func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(httpx.ContextWithUser(r.Context(), userID, "USER"))
}

func TestHTTPHandler_ListLoads(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := new(mockRunRepo)
		handler := NewHTTPHandler(repo)
		started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		repo.On("ListRuns", mock.Anything, "u1", 5).Return([]LoadRun{
			{ID: "run-1", Identity: "u1", Seq: 2, Status: RunCompleted, Entries: 151, StartedAt: started},
		}, nil)

		w := httptest.NewRecorder()
		r := authed(httptest.NewRequest(http.MethodGet, "/v1/pokemon/loads?limit=5", nil), "u1")
		handler.ListLoads(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Success bool           `json:"success"`
			Data    []LoadRun      `json:"data"`
			Meta    map[string]any `json:"meta"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.True(t, body.Success)
		require.Len(t, body.Data, 1)
		assert.Equal(t, RunCompleted, body.Data[0].Status)
		assert.EqualValues(t, 5, body.Meta["limit"])
		repo.AssertExpectations(t)
	})

	t.Run("default limit and empty list", func(t *testing.T) {
		repo := new(mockRunRepo)
		handler := NewHTTPHandler(repo)
		repo.On("ListRuns", mock.Anything, "u1", 20).Return(nil, nil)

		w := httptest.NewRecorder()
		r := authed(httptest.NewRequest(http.MethodGet, "/v1/pokemon/loads?limit=1000", nil), "u1")
		handler.ListLoads(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		handler := NewHTTPHandler(new(mockRunRepo))
		w := httptest.NewRecorder()
		handler.ListLoads(w, httptest.NewRequest(http.MethodGet, "/v1/pokemon/loads", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(mockRunRepo)
		handler := NewHTTPHandler(repo)
		repo.On("ListRuns", mock.Anything, "u1", 20).Return(nil, errors.New("db down"))

		w := httptest.NewRecorder()
		handler.ListLoads(w, authed(httptest.NewRequest(http.MethodGet, "/v1/pokemon/loads", nil), "u1"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
