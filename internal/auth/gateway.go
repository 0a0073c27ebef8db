package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GatewayError reports a failed authentication exchange. No token side effect
// occurs when it is returned.
type GatewayError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Gateway exchanges credentials for an opaque token against a remote endpoint
// and forwards successful tokens to the session token store.
type Gateway struct {
	baseURL string
	client  *http.Client
	tokens  TokenStore
}

// NewGateway constructs a gateway for the given API base URL (for example
// "http://localhost:8080/api"). A nil client falls back to a default with a
// request timeout.
func NewGateway(baseURL string, tokens TokenStore, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		tokens:  tokens,
	}
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the credentials and stores the returned token.
func (g *Gateway) Login(ctx context.Context, email, password string) (string, error) {
	return g.exchange(ctx, "login", "/users/login", email, password)
}

// Register creates an account and stores the returned token.
func (g *Gateway) Register(ctx context.Context, email, password string) (string, error) {
	return g.exchange(ctx, "register", "/users/register", email, password)
}

// Logout clears the stored token.
func (g *Gateway) Logout() error {
	return g.tokens.ClearToken()
}

// IsAuthenticated reports whether a session token is present.
func (g *Gateway) IsAuthenticated() bool {
	return g.tokens.IsAuthenticated()
}

func (g *Gateway) exchange(ctx context.Context, operation, path, email, password string) (string, error) {
	payload, err := json.Marshal(credentialsPayload{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &GatewayError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	token := parseToken(body)
	if token == "" {
		return "", &GatewayError{Operation: operation, StatusCode: resp.StatusCode, Body: "empty token in response"}
	}
	if err := g.tokens.SetToken(token); err != nil {
		return "", fmt.Errorf("%s: store token: %w", operation, err)
	}
	return token, nil
}

// parseToken accepts either a bare token body or a JSON-encoded string. The
// token itself stays opaque.
func parseToken(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	var quoted string
	if json.Unmarshal([]byte(trimmed), &quoted) == nil {
		return quoted
	}
	return trimmed
}
