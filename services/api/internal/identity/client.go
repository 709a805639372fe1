package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized means the identity platform rejected the token.
var ErrUnauthorized = errors.New("unauthorized")

// Client resolves bearer tokens against the identity platform's user
// endpoint. It is the authoritative check: a token that verifies locally but
// belongs to a deleted or banned account is still rejected here.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// APIError represents an identity platform error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity service: status %d: %s", e.Status, e.Message)
}

// NewClient constructs an identity client for the platform at baseURL.
// The anon key accompanies every request, as the platform requires.
func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		anonKey:    strings.TrimSpace(anonKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type userResponse struct {
	ID string `json:"id"`
}

// UserID returns the user id the token belongs to.
// Invalid, expired, or revoked tokens yield ErrUnauthorized.
func (c *Client) UserID(token string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var user userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return "", fmt.Errorf("decode identity response: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return "", ErrUnauthorized
	}
	return user.ID, nil
}
