// Package auth drives the login, registration and password-reset flows
// against the backend auth endpoints and keeps the token store in sync.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/pravochat/cli/internal/service/api"
	"github.com/pravochat/cli/internal/token"
)

var (
	// ErrNoAccessToken means the backend answered 2xx to a login but the
	// access_token field was missing.
	ErrNoAccessToken = errors.New("no access token in login response")
	// ErrNotAuthenticated means an operation needing a token found none.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Service wires the auth endpoints to the token store.
type Service struct {
	client *api.Client
	tokens *token.Store
}

// NewService builds the auth service.
func NewService(client *api.Client, tokens *token.Store) *Service {
	return &Service{client: client, tokens: tokens}
}

// RegisterRequest carries the registration form fields.
type RegisterRequest struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// loginResponse is the token grant returned by the login endpoint.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a session token and persists it. The
// backend speaks the password grant form: username, password, grant_type.
func (s *Service) Login(ctx context.Context, email, password string) error {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	form.Set("grant_type", "password")

	req, err := s.client.NewRequest(ctx, http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}

	var grant loginResponse
	if err := api.DecodeJSON(resp, &grant); err != nil {
		return err
	}
	if grant.AccessToken == "" {
		return ErrNoAccessToken
	}

	return s.tokens.Set(grant.AccessToken)
}

// Register submits the registration form. On success the backend sends a
// confirmation email; nothing is stored locally.
func (s *Service) Register(ctx context.Context, reg RegisterRequest) error {
	form := url.Values{}
	form.Set("email", reg.Email)
	form.Set("first_name", reg.FirstName)
	form.Set("last_name", reg.LastName)
	form.Set("password", reg.Password)

	req, err := s.client.NewRequest(ctx, http.MethodPost, "/api/auth/register", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.client.WithCSRF(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	return api.DecodeJSON(resp, nil)
}

// ForgotPassword asks the backend to mail password-reset instructions.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("marshal forgot-password body: %w", err)
	}

	req, err := s.client.NewRequest(ctx, http.MethodPost, "/api/auth/forgot-password", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.client.WithCSRF(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	return api.DecodeJSON(resp, nil)
}

// Logout tells the backend to drop the session and clears the local token.
// The token is cleared even when the backend call fails; a dead session on
// the server is preferable to a stuck client.
func (s *Service) Logout(ctx context.Context) error {
	tok, ok := s.tokens.Get()
	if !ok {
		return nil
	}

	req, err := s.client.NewRequest(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err == nil {
		api.WithBearer(req, tok)
		s.client.WithCSRF(req)
		if resp, doErr := s.client.Do(req); doErr != nil {
			log.Printf("[auth] logout request failed: %v", doErr)
		} else if decodeErr := api.DecodeJSON(resp, nil); decodeErr != nil {
			log.Printf("[auth] logout rejected: %v", decodeErr)
		}
	}

	return s.tokens.Clear()
}

// Probe validates the stored token against the profile endpoint. Any
// non-success response invalidates the token and clears it. The returned
// bool says whether the client is authenticated afterwards.
func (s *Service) Probe(ctx context.Context) (bool, error) {
	tok, ok := s.tokens.Get()
	if !ok {
		return false, nil
	}

	req, err := s.client.NewRequest(ctx, http.MethodGet, "/api/auth/profile", nil)
	if err != nil {
		return false, err
	}
	api.WithBearer(req, tok)

	resp, err := s.client.Do(req)
	if err != nil {
		// Transport failure: treat the token as invalid, like the web
		// client does on a failed profile fetch.
		return false, s.tokens.Clear()
	}

	if err := api.DecodeJSON(resp, nil); err != nil {
		if clearErr := s.tokens.Clear(); clearErr != nil {
			return false, clearErr
		}
		return false, nil
	}
	return true, nil
}
