package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"TasteClient/internal/domain"
	"TasteClient/internal/infrastructure/transport"
)

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserType    string `json:"user_type,omitempty"`
}

// AuthAPI exchanges credentials for a bearer token and manages its local lifecycle.
type AuthAPI struct {
	doer   Doer
	store  TokenStore
	logger *slog.Logger
}

// Login posts the credentials. A returned access token becomes the active
// session; a response without one leaves the session untouched.
func (a *AuthAPI) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("encode login: %w", err)
	}

	var out LoginResponse
	err = getJSON(ctx, a.doer, transport.Request{
		Method:      http.MethodPost,
		Path:        PathLogin,
		Body:        payload,
		ContentType: "application/json",
	}, &out)
	if err != nil {
		return LoginResponse{}, err
	}

	if out.AccessToken == "" {
		a.logger.Warn("login answered without a token", "user", username)
		return out, nil
	}
	if err := a.store.Set(ctx, domain.Credential(out.AccessToken)); err != nil {
		return out, fmt.Errorf("store token: %w", err)
	}
	a.logger.Info("logged in", "user", username, "token", domain.Credential(out.AccessToken))
	return out, nil
}

// Logout is local only: the token is dropped from memory and durable storage.
func (a *AuthAPI) Logout(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// InitializeToken restores a persisted session. Call once at startup.
func (a *AuthAPI) InitializeToken(ctx context.Context) error {
	if err := a.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize token: %w", err)
	}
	return nil
}

// Authenticated reports whether a token is currently held.
func (a *AuthAPI) Authenticated() bool {
	_, ok := a.store.Current()
	return ok
}
