package pokedex

import (
	"encoding/json"
	"errors"
	"net/http"

	"pokedex/internal/collection"
	"pokedex/internal/httpx"
	"pokedex/internal/notify"
)

type HTTPHandler struct {
	sessions *Manager
}

func NewHTTPHandler(sessions *Manager) *HTTPHandler {
	return &HTTPHandler{sessions: sessions}
}

func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request, requireUser bool) (*Session, bool) {
	userID := httpx.UserIDFrom(r)
	if requireUser && userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return nil, false
	}
	sess, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "Catalog is still loading", nil)
		return nil, false
	}
	return sess, true
}

func snapshotMeta(snap Snapshot, extra map[string]any) map[string]any {
	meta := map[string]any{
		"status": snap.Status,
		"seq":    snap.Seq,
	}
	if snap.LastError != "" {
		meta["last_error"] = snap.LastError
	}
	if snap.Identity != "" {
		meta["collection_ready"] = snap.CollectionReady
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

// ListPokemon handles GET /v1/pokemon
// @Summary Browse the catalog
// @Description Catalog loaded for the caller, filtered by a case-insensitive name substring
// @Tags pokemon
// @Produce json
// @Param q query string false "Name filter"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 503 {object} httpx.ErrorResponse
// @Router /v1/pokemon [get]
func (h *HTTPHandler) ListPokemon(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, false)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	entries := sess.Search(query)
	httpx.JSONSuccess(w, r, entries, snapshotMeta(sess.Snapshot(), map[string]any{
		"total": len(entries),
		"query": query,
	}))
}

// GetPokemon handles GET /v1/pokemon/{name}
// @Summary Get a catalog entry
// @Tags pokemon
// @Produce json
// @Param name path string true "Pokemon name"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/pokemon/{name} [get]
func (h *HTTPHandler) GetPokemon(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, false)
	if !ok {
		return
	}
	name := r.PathValue("name")
	entry, found := sess.Entry(name)
	if !found {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Pokemon not found", nil)
		return
	}

	state := collection.StateUnknown
	if sess.Identity() != "" {
		var err error
		state, err = sess.Ownership(r.Context(), name)
		if err != nil {
			httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not check your collection", nil)
			return
		}
	}

	httpx.JSONSuccess(w, r, map[string]any{
		"pokemon":    entry,
		"membership": state,
	}, nil)
}

// Reload handles POST /v1/pokemon/reload
// @Summary Reload the catalog
// @Description Re-fetches the caller's catalog and collection
// @Tags pokemon
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /v1/pokemon/reload [post]
func (h *HTTPHandler) Reload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, true)
	if !ok {
		return
	}
	if err := sess.Reload(r.Context()); err != nil {
		if errors.Is(err, ErrStaleLoad) {
			httpx.JSONError(w, r, http.StatusConflict, "STALE_LOAD", "A newer catalog load superseded this one", nil)
			return
		}
		httpx.JSONError(w, r, http.StatusBadGateway, "CATALOG_LOAD_FAILED", "Catalog could not be loaded", nil)
		return
	}
	httpx.JSONSuccess(w, r, sess.Snapshot(), nil)
}

// ListCollection handles GET /v1/collection
// @Summary List my collection
// @Tags collection
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 503 {object} httpx.ErrorResponse
// @Router /v1/collection [get]
func (h *HTTPHandler) ListCollection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, true)
	if !ok {
		return
	}
	if !sess.Snapshot().CollectionReady {
		notify.Failure(r.Context(), "Could not load your collection")
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "COLLECTION_UNAVAILABLE", "Collection could not be loaded", nil)
		return
	}
	records := sess.Collection()
	httpx.JSONSuccess(w, r, records, map[string]any{"total": len(records)})
}

type addReq struct {
	Name string `json:"name" validate:"required,pokemon_name"`
}

// AddToCollection handles POST /v1/collection
// @Summary Add a pokemon to my collection
// @Tags collection
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body addReq true "Pokemon"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/collection [post]
func (h *HTTPHandler) AddToCollection(w http.ResponseWriter, r *http.Request) {
	var req addReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", details)
		return
	}

	sess, ok := h.session(w, r, true)
	if !ok {
		return
	}
	rec, err := sess.Add(r.Context(), req.Name)
	if err != nil {
		writeCollectionError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, rec)
}

// RemoveFromCollection handles DELETE /v1/collection/{name}
// @Summary Remove a pokemon from my collection
// @Tags collection
// @Produce json
// @Security Bearer
// @Param name path string true "Pokemon name"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/collection/{name} [delete]
func (h *HTTPHandler) RemoveFromCollection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, true)
	if !ok {
		return
	}
	name := r.PathValue("name")
	if err := sess.Remove(r.Context(), name); err != nil {
		writeCollectionError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]any{"name": name, "removed": true}, nil)
}

// Ownership handles GET /v1/collection/{name}/ownership
// @Summary Check whether I own a pokemon
// @Tags collection
// @Produce json
// @Security Bearer
// @Param name path string true "Pokemon name"
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/collection/{name}/ownership [get]
func (h *HTTPHandler) Ownership(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, true)
	if !ok {
		return
	}
	name := r.PathValue("name")
	state, err := sess.Ownership(r.Context(), name)
	if err != nil {
		writeCollectionError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]any{
		"name":  name,
		"state": state,
		"owned": state == collection.StateOwned,
	}, nil)
}

func writeCollectionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownPokemon):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Pokemon not found in catalog", nil)
	case errors.Is(err, collection.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Pokemon not in your collection", nil)
	case errors.Is(err, collection.ErrAlreadyOwned):
		httpx.JSONError(w, r, http.StatusConflict, "ALREADY_OWNED", "Pokemon already in your collection", nil)
	case errors.Is(err, collection.ErrInvalidRecord):
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "INVALID_RECORD", "Pokemon cannot be saved", nil)
	case errors.Is(err, ErrNoIdentity):
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
