package pokemon

import (
	"net/http"
	"strconv"

	"pokedex/internal/httpx"
)

type HTTPHandler struct {
	runs RunRepository
}

func NewHTTPHandler(runs RunRepository) *HTTPHandler {
	return &HTTPHandler{runs: runs}
}

// ListLoads handles GET /v1/pokemon/loads
// @Summary List catalog load attempts
// @Description Recent catalog loads started for the authenticated identity
// @Tags pokemon
// @Produce json
// @Security Bearer
// @Param limit query int false "Max runs" default(20)
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /v1/pokemon/loads [get]
func (h *HTTPHandler) ListLoads(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := h.runs.ListRuns(r.Context(), userID, limit)
	if err != nil {
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	if runs == nil {
		runs = []LoadRun{}
	}

	httpx.JSONSuccess(w, r, runs, map[string]any{"limit": limit})
}
