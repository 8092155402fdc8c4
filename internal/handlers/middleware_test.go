package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sunssactor/internal/service"
)

func TestMiddleware_MissingHeader(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{}, Sunss: &mockSunss{}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sunss/state", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{}, Sunss: &mockSunss{}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sunss/state", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	auth := &mockAuth{parseErr: errors.New("expired")}
	s := &service.Service{Authorization: auth, Sunss: &mockSunss{}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sunss/state", nil)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if auth.lastParseToken != "bad" {
		t.Fatalf("token not passed to ParseToken")
	}
}

func TestMiddleware_ValidTokenPasses(t *testing.T) {
	auth := &mockAuth{parseID: 42}
	s := &service.Service{Authorization: auth, Sunss: &mockSunss{}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sunss/state", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
