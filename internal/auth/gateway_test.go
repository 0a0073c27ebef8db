package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flexdetect/internal/auth"
)

func newAuthServer(t *testing.T, status int, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode credentials: %v", err)
		}
		if creds.Email == "" || creds.Password == "" {
			t.Errorf("missing credentials in payload: %+v", creds)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
}

func TestLoginStoresToken(t *testing.T) {
	srv := newAuthServer(t, http.StatusOK, "tok-abc")
	defer srv.Close()

	tokens := auth.NewMemoryTokenStore()
	gw := auth.NewGateway(srv.URL, tokens, srv.Client())

	token, err := gw.Login(context.Background(), "a@b.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "tok-abc" {
		t.Fatalf("unexpected token: %q", token)
	}
	stored, ok := tokens.Token()
	if !ok || stored != "tok-abc" {
		t.Fatalf("token not stored: %q, %v", stored, ok)
	}
	if !gw.IsAuthenticated() {
		t.Fatalf("expected authenticated after login")
	}
}

func TestLoginAcceptsJSONQuotedToken(t *testing.T) {
	srv := newAuthServer(t, http.StatusOK, `"tok-quoted"`)
	defer srv.Close()

	tokens := auth.NewMemoryTokenStore()
	gw := auth.NewGateway(srv.URL, tokens, srv.Client())

	token, err := gw.Login(context.Background(), "a@b.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "tok-quoted" {
		t.Fatalf("quotes not stripped: %q", token)
	}
}

func TestFailedLoginStoresNothing(t *testing.T) {
	srv := newAuthServer(t, http.StatusUnauthorized, "bad credentials")
	defer srv.Close()

	tokens := auth.NewMemoryTokenStore()
	gw := auth.NewGateway(srv.URL, tokens, srv.Client())

	_, err := gw.Login(context.Background(), "a@b.com", "wrong")
	var gwErr *auth.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusUnauthorized || gwErr.Operation != "login" {
		t.Fatalf("unexpected error details: %+v", gwErr)
	}
	if gw.IsAuthenticated() {
		t.Fatalf("failed login must not store a token")
	}
}

func TestRegisterStoresToken(t *testing.T) {
	srv := newAuthServer(t, http.StatusCreated, "tok-new")
	defer srv.Close()

	tokens := auth.NewMemoryTokenStore()
	gw := auth.NewGateway(srv.URL, tokens, srv.Client())

	token, err := gw.Register(context.Background(), "new@b.com", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token != "tok-new" {
		t.Fatalf("unexpected token: %q", token)
	}
}

func TestEmptyTokenResponseIsAnError(t *testing.T) {
	srv := newAuthServer(t, http.StatusOK, "")
	defer srv.Close()

	tokens := auth.NewMemoryTokenStore()
	gw := auth.NewGateway(srv.URL, tokens, srv.Client())

	_, err := gw.Login(context.Background(), "a@b.com", "secret")
	var gwErr *auth.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError for empty token, got %v", err)
	}
	if gw.IsAuthenticated() {
		t.Fatalf("empty token must not authenticate")
	}
}

func TestLogoutClearsToken(t *testing.T) {
	tokens := auth.NewMemoryTokenStore()
	if err := tokens.SetToken("tok"); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	gw := auth.NewGateway("http://unused", tokens, nil)

	if err := gw.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if gw.IsAuthenticated() {
		t.Fatalf("expected unauthenticated after logout")
	}
}
