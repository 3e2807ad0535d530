package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fdg312/menu-batches/internal/config"
	"github.com/fdg312/menu-batches/internal/userctx"
)

func testConfig() *config.Config {
	return &config.Config{
		AuthMode:      "dev",
		AuthEnabled:   true,
		AuthRequired:  true,
		JWTSecret:     "test-secret-key-for-testing-only",
		JWTIssuer:     "menu-batches-test",
		JWTTTLMinutes: 60,
	}
}

func TestHandleDevAuth(t *testing.T) {
	handler := NewHandlers(NewService(testConfig()))

	t.Run("Success", func(t *testing.T) {
		body, _ := json.Marshal(DevAuthRequest{UserID: "dietitian-1", Role: "Producer"})
		req := httptest.NewRequest("POST", "/v1/auth/dev", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleDevAuth(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d. Body: %s", w.Code, w.Body.String())
		}
		var resp DevAuthResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.AccessToken == "" {
			t.Error("expected access_token not empty")
		}
		if resp.Role != userctx.RoleProducer {
			t.Errorf("expected role producer, got %q", resp.Role)
		}
		if resp.ExpiresIn != 3600 {
			t.Errorf("expected expires_in 3600, got %d", resp.ExpiresIn)
		}
	})

	t.Run("UnknownRole", func(t *testing.T) {
		body, _ := json.Marshal(DevAuthRequest{UserID: "x", Role: "admin"})
		req := httptest.NewRequest("POST", "/v1/auth/dev", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleDevAuth(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("ConsumerNeedsNumericID", func(t *testing.T) {
		body, _ := json.Marshal(DevAuthRequest{UserID: "alice", Role: "consumer"})
		req := httptest.NewRequest("POST", "/v1/auth/dev", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleDevAuth(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("DisabledOutsideDevMode", func(t *testing.T) {
		cfg := testConfig()
		cfg.AuthMode = "none"
		h := NewHandlers(NewService(cfg))
		body, _ := json.Marshal(DevAuthRequest{UserID: "p", Role: "producer"})
		req := httptest.NewRequest("POST", "/v1/auth/dev", bytes.NewReader(body))
		w := httptest.NewRecorder()

		h.HandleDevAuth(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
	})
}

func TestMiddlewareAuth(t *testing.T) {
	cfg := testConfig()
	service := NewService(cfg)
	middleware := NewMiddleware(cfg, service)

	t.Run("ValidToken", func(t *testing.T) {
		token, err := service.IssueToken("42", userctx.RoleConsumer, time.Hour)
		if err != nil {
			t.Fatal(err)
		}

		req := httptest.NewRequest("GET", "/v1/me/batches", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		var calledNext bool
		handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calledNext = true
			userID, ok := GetUserID(r.Context())
			if !ok || userID != "42" {
				t.Errorf("expected user_id 42 in context, got %q", userID)
			}
			if role := userctx.GetRole(r.Context()); role != userctx.RoleConsumer {
				t.Errorf("expected consumer role, got %q", role)
			}
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(w, req)

		if !calledNext {
			t.Error("expected next handler to be called")
		}
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("MissingToken", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/batches", nil)
		w := httptest.NewRecorder()

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("should not call next handler")
		}))

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		token, err := service.IssueToken("p1", userctx.RoleProducer, -time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest("GET", "/v1/batches", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("should not call next handler")
		}))

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
	})

	t.Run("PublicPathSkipsCheck", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()

		var called bool
		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(w, req)

		if !called {
			t.Error("expected /healthz to pass without token")
		}
	})
}

func TestMiddlewareAuthDisabled(t *testing.T) {
	cfg := &config.Config{AuthMode: "none"}
	middleware := NewMiddleware(cfg, NewService(cfg))

	req := httptest.NewRequest("GET", "/v1/batches", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()

	var calledNext bool
	handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calledNext = true
		if role := userctx.GetRole(r.Context()); role != "" {
			t.Errorf("expected no role, got %q", role)
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(w, req)

	if !calledNext {
		t.Error("expected next handler to be called when auth disabled")
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRequired = false
	service := NewService(cfg)
	middleware := NewMiddleware(cfg, service)

	t.Run("NoTokenPasses", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/batches", nil)
		w := httptest.NewRecorder()

		var called bool
		handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(w, req)

		if !called || w.Code != http.StatusOK {
			t.Fatalf("expected passthrough with 200, got called=%v status=%d", called, w.Code)
		}
	})

	t.Run("InvalidTokenRejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/batches", nil)
		req.Header.Set("Authorization", "Bearer invalid")
		w := httptest.NewRecorder()

		handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("should not call next handler")
		}))

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("DevAuthPathAlwaysAccessible", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/auth/dev", nil)
		req.Header.Set("Authorization", "Bearer invalid")
		w := httptest.NewRecorder()

		var called bool
		handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(w, req)

		if !called || w.Code != http.StatusOK {
			t.Fatalf("expected /v1/auth/dev passthrough, called=%v status=%d", called, w.Code)
		}
	})
}

func TestVerifyJWT(t *testing.T) {
	cfg := testConfig()
	service := NewService(cfg)

	token, err := service.IssueToken("ops", userctx.RoleOperator, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, err := service.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if id.UserID != "ops" || id.Role != userctx.RoleOperator {
		t.Fatalf("unexpected identity %+v", id)
	}

	other := testConfig()
	other.JWTSecret = "another-secret"
	if _, err := NewService(other).VerifyJWT(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}

	other = testConfig()
	other.JWTIssuer = "someone-else"
	if _, err := NewService(other).VerifyJWT(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for foreign issuer, got %v", err)
	}
}
