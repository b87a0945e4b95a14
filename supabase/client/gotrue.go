package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// AuthClient calls the GoTrue endpoints under /auth/v1.
type AuthClient struct {
	client *Client
}

// Auth returns the account API.
func (c *Client) Auth() *AuthClient {
	return &AuthClient{client: c}
}

// AuthResponse is a GoTrue session. AccessToken is empty when the project
// requires email confirmation before sign-in.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// User is a GoTrue account.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	Role             string         `json:"role"`
	EmailConfirmedAt string         `json:"email_confirmed_at"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
	AppMetadata      map[string]any `json:"app_metadata"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

// SignUp registers an account; metadata becomes the user's user_metadata.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthResponse, error) {
	payload := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}
	resp, err := a.call(ctx, http.MethodPost, "/auth/v1/signup", payload, "")
	if err != nil {
		return nil, err
	}

	// Without auto-confirm GoTrue answers with the bare user object.
	body := gjson.ParseBytes(resp.Body)
	if !body.Get("access_token").Exists() && !body.Get("user").Exists() {
		var user User
		if err := json.Unmarshal(resp.Body, &user); err != nil {
			return nil, fmt.Errorf("decode signup user: %w", err)
		}
		return &AuthResponse{User: &user}, nil
	}
	return decodeSession(resp)
}

// SignIn exchanges email and password for a session.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	resp, err := a.call(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, err
	}
	return decodeSession(resp)
}

// SignOut revokes the session behind accessToken.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := a.call(ctx, http.MethodPost, "/auth/v1/logout", nil, accessToken)
	return err
}

// GetUser resolves the account owning accessToken.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := a.call(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// call sends a GoTrue request, authorised as bearer when one is given.
func (a *AuthClient) call(ctx context.Context, method, path string, payload any, bearer string) (*Response, error) {
	req, err := a.client.newRequest(ctx, method, a.client.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return a.client.do(req)
}

func decodeSession(resp *Response) (*AuthResponse, error) {
	var out AuthResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &out, nil
}
