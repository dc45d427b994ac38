package pokedex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokedex/internal/collection"
	"pokedex/internal/httpx"
	"pokedex/internal/notify"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func newTestRouter(t *testing.T, loader *stubLoader) http.Handler {
	t.Helper()
	return routerFor(newTestManager(t, loader))
}

func routerFor(m *Manager) http.Handler {
	h := NewHTTPHandler(m)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/pokemon", h.ListPokemon)
	mux.HandleFunc("GET /v1/pokemon/{name}", h.GetPokemon)
	mux.HandleFunc("POST /v1/pokemon/reload", h.Reload)
	mux.HandleFunc("GET /v1/collection", h.ListCollection)
	mux.HandleFunc("POST /v1/collection", h.AddToCollection)
	mux.HandleFunc("DELETE /v1/collection/{name}", h.RemoveFromCollection)
	mux.HandleFunc("GET /v1/collection/{name}/ownership", h.Ownership)
	return httpx.NotifyMiddleware(mux)
}

func do(t *testing.T, h http.Handler, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if userID != "" {
		req = req.WithContext(httpx.ContextWithUser(req.Context(), userID, "USER"))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHTTPHandler_ListPokemon(t *testing.T) {
	h := newTestRouter(t, newStubLoader(pikachu, eevee))

	rr := do(t, h, http.MethodGet, "/v1/pokemon?q=EEV", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	env := decode(t, rr)

	var views []EntryView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "eevee", views[0].Name)
	assert.False(t, views[0].Owned)
	assert.Equal(t, "ready", env.Meta["status"])
	assert.EqualValues(t, 1, env.Meta["total"])
	assert.Equal(t, "EEV", env.Meta["query"])
}

func TestHTTPHandler_GetPokemon(t *testing.T) {
	h := newTestRouter(t, newStubLoader(pikachu))

	rr := do(t, h, http.MethodGet, "/v1/pokemon/pikachu", "ash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Pokemon    EntryView `json:"pokemon"`
		Membership string    `json:"membership"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
	assert.Equal(t, 25, body.Pokemon.ID)
	assert.Equal(t, "not_owned", body.Membership)

	rr = do(t, h, http.MethodGet, "/v1/pokemon/pikachu", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
	assert.Equal(t, "unknown", body.Membership)

	rr = do(t, h, http.MethodGet, "/v1/pokemon/mewtwo", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTPHandler_Reload(t *testing.T) {
	loader := newStubLoader(pikachu)
	h := newTestRouter(t, loader)

	rr := do(t, h, http.MethodPost, "/v1/pokemon/reload", "ash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &snap))
	assert.Equal(t, uint64(2), snap.Seq)
	assert.Equal(t, StatusReady, snap.Status)

	loader.setErr(assert.AnError)
	rr = do(t, h, http.MethodPost, "/v1/pokemon/reload", "ash", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "CATALOG_LOAD_FAILED", decode(t, rr).Error.Code)

	// The last good catalog is still served.
	rr = do(t, h, http.MethodGet, "/v1/pokemon", "ash", "")
	env := decode(t, rr)
	assert.Equal(t, "failed", env.Meta["status"])
	assert.NotEmpty(t, env.Meta["last_error"])
	var views []EntryView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	assert.Len(t, views, 1)
}

func TestHTTPHandler_CollectionFlow(t *testing.T) {
	h := newTestRouter(t, newStubLoader(pikachu, eevee))

	rr := do(t, h, http.MethodPost, "/v1/collection", "ash", `{"name":"pikachu"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	env := decode(t, rr)
	assert.Contains(t, rr.Body.String(), "pikachu added to your collection")
	var rec struct {
		Name string `json:"name"`
		User string `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "pikachu", rec.Name)
	assert.Equal(t, "ash", rec.User)

	rr = do(t, h, http.MethodPost, "/v1/collection", "ash", `{"name":"pikachu"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_OWNED", decode(t, rr).Error.Code)

	rr = do(t, h, http.MethodGet, "/v1/collection/pikachu/ownership", "ash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"owned":true`)

	rr = do(t, h, http.MethodGet, "/v1/collection", "ash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr).Meta["total"])

	rr = do(t, h, http.MethodGet, "/v1/pokemon?q=pika", "ash", "")
	var views []EntryView
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &views))
	require.Len(t, views, 1)
	assert.True(t, views[0].Owned)

	rr = do(t, h, http.MethodDelete, "/v1/collection/pikachu", "ash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pikachu removed from your collection")

	rr = do(t, h, http.MethodDelete, "/v1/collection/pikachu", "ash", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTPHandler_CollectionErrors(t *testing.T) {
	h := newTestRouter(t, newStubLoader(pikachu))

	tests := []struct {
		name   string
		method string
		target string
		user   string
		body   string
		code   int
	}{
		{name: "anonymous list", method: http.MethodGet, target: "/v1/collection", code: http.StatusUnauthorized},
		{name: "anonymous reload", method: http.MethodPost, target: "/v1/pokemon/reload", code: http.StatusUnauthorized},
		{name: "anonymous add", method: http.MethodPost, target: "/v1/collection", body: `{"name":"pikachu"}`, code: http.StatusUnauthorized},
		{name: "malformed body", method: http.MethodPost, target: "/v1/collection", user: "ash", body: `{`, code: http.StatusBadRequest},
		{name: "invalid name", method: http.MethodPost, target: "/v1/collection", user: "ash", body: `{"name":"Pika Chu"}`, code: http.StatusBadRequest},
		{name: "not in catalog", method: http.MethodPost, target: "/v1/collection", user: "ash", body: `{"name":"mewtwo"}`, code: http.StatusNotFound},
		{name: "remove unowned", method: http.MethodDelete, target: "/v1/collection/pikachu", user: "ash", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.target, tt.user, tt.body)
			assert.Equal(t, tt.code, rr.Code)
			assert.False(t, decode(t, rr).Success)
		})
	}
}

func TestHTTPHandler_CatalogUnavailable(t *testing.T) {
	loader := newStubLoader(pikachu)
	release := loader.hold("")
	defer release()
	h := NewHTTPHandler(newTestManager(t, loader))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/pokemon", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.ListPokemon(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHTTPHandler_NotificationsInMeta(t *testing.T) {
	h := newTestRouter(t, newStubLoader(pikachu))
	rr := do(t, h, http.MethodPost, "/v1/collection", "ash", `{"name":"pikachu"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var body struct {
		Meta struct {
			Notifications []notify.Notification `json:"notifications"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Meta.Notifications, 1)
	assert.Equal(t, notify.LevelSuccess, body.Meta.Notifications[0].Level)
}

func TestHTTPHandler_CollectionUnavailable(t *testing.T) {
	repo := newGatedRepo(t)
	repo.failList(assert.AnError)
	m := NewManager(newStubLoader(pikachu), collection.NewService(repo), &memRuns{})
	t.Cleanup(m.Close)
	h := routerFor(m)

	rr := do(t, h, http.MethodGet, "/v1/collection", "ash", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "COLLECTION_UNAVAILABLE", decode(t, rr).Error.Code)
	assert.Contains(t, rr.Body.String(), "Could not load your collection")

	rr = do(t, h, http.MethodGet, "/v1/pokemon", "ash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	env := decode(t, rr)
	assert.Equal(t, "failed", env.Meta["status"])
	assert.Equal(t, false, env.Meta["collection_ready"])

	repo.failList(nil)
	rr = do(t, h, http.MethodPost, "/v1/pokemon/reload", "ash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodGet, "/v1/collection", "ash", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
