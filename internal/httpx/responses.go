package httpx

import (
	"encoding/json"
	"net/http"

	"pokedex/internal/notify"
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   ErrorResponseBody `json:"error"`
	Meta    interface{}       `json:"meta,omitempty"`
}

type ErrorResponseBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// buildMeta merges the request id, collected notifications and custom meta.
func buildMeta(r *http.Request, customMeta map[string]any) map[string]any {
	meta := make(map[string]any)
	if r != nil {
		if requestID := RequestIDFrom(r); requestID != "" {
			meta["request_id"] = requestID
		}
		if c := notify.From(r.Context()); c != nil {
			if items := c.Items(); len(items) > 0 {
				meta["notifications"] = items
			}
		}
	}
	for k, v := range customMeta {
		meta[k] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func JSONSuccess(w http.ResponseWriter, r *http.Request, data interface{}, customMeta map[string]any) {
	resp := SuccessResponse{Success: true, Data: data}
	if meta := buildMeta(r, customMeta); meta != nil {
		resp.Meta = meta
	}
	writeJSON(w, http.StatusOK, resp)
}

func JSONSuccessCreated(w http.ResponseWriter, r *http.Request, data interface{}) {
	resp := SuccessResponse{Success: true, Data: data}
	if meta := buildMeta(r, nil); meta != nil {
		resp.Meta = meta
	}
	writeJSON(w, http.StatusCreated, resp)
}

func JSONSuccessNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func JSONError(w http.ResponseWriter, r *http.Request, statusCode int, code string, message string, details []ErrorDetail) {
	resp := ErrorResponse{
		Success: false,
		Error: ErrorResponseBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	if meta := buildMeta(r, nil); meta != nil {
		resp.Meta = meta
	}
	writeJSON(w, statusCode, resp)
}
