// Package testutil holds request and token helpers shared by HTTP tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pokedex/internal/platform/crypto"
)

// GenerateTestToken generates a valid access token for testing.
func GenerateTestToken(secret, userID, role string) string {
	token, _, _ := crypto.GenerateToken(secret, userID, role, time.Hour)
	return token
}

// GenerateExpiredToken generates a correctly signed token that expired an hour ago.
func GenerateExpiredToken(secret, userID, role string) string {
	c := crypto.Claims{
		Sub:  userID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    crypto.Issuer,
			ID:        "expired-jti",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	token, _ := t.SignedString([]byte(secret))
	return token
}

// NewRequest creates a request. A string body is sent as is, anything else
// is JSON encoded.
func NewRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		bodyBytes, _ := json.Marshal(b)
		reader = bytes.NewReader(bodyBytes)
	}
	r := httptest.NewRequest(method, path, reader)
	if reader != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

// NewRequestWithAuth creates a request carrying token as a bearer credential.
func NewRequestWithAuth(method, path string, body interface{}, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// Envelope is the decoded shape of every JSON API response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DecodeEnvelope decodes the recorded body. A non-JSON body yields a zero Envelope.
func DecodeEnvelope(w *httptest.ResponseRecorder) Envelope {
	var env Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return env
}
