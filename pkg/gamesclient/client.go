package gamesclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gameshelf/pkg/domain"
)

// Client calls the games API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a games API error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NotFound reports whether the error is a games API 404.
func NotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// NewClient constructs a games API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ListGames returns the caller's library in display order.
func (c *Client) ListGames(token string) ([]domain.Game, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/games", nil)
	if err != nil {
		return nil, err
	}
	addAuthHeader(req, token)

	var games []domain.Game
	if err := c.do(req, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// CurrentGame returns the now-playing game, or the most recently played one
// when nothing is marked current. A library with no games yields a 404
// APIError.
func (c *Client) CurrentGame(token string) (domain.Game, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/games/current", nil)
	if err != nil {
		return domain.Game{}, err
	}
	addAuthHeader(req, token)

	var game domain.Game
	if err := c.do(req, &game); err != nil {
		return domain.Game{}, err
	}
	return game, nil
}

func (c *Client) GetGame(token string, id int64) (domain.Game, error) {
	req, err := http.NewRequest(http.MethodGet, c.gamePath(id), nil)
	if err != nil {
		return domain.Game{}, err
	}
	addAuthHeader(req, token)

	var game domain.Game
	if err := c.do(req, &game); err != nil {
		return domain.Game{}, err
	}
	return game, nil
}

func (c *Client) CreateGame(token string, input domain.CreateInput) (domain.Game, error) {
	req, err := c.jsonRequest(http.MethodPost, c.baseURL+"/games", token, input)
	if err != nil {
		return domain.Game{}, err
	}
	var game domain.Game
	if err := c.do(req, &game); err != nil {
		return domain.Game{}, err
	}
	return game, nil
}

func (c *Client) UpdateGame(token string, id int64, patch domain.GamePatch) (domain.Game, error) {
	req, err := c.jsonRequest(http.MethodPatch, c.gamePath(id), token, patch)
	if err != nil {
		return domain.Game{}, err
	}
	var game domain.Game
	if err := c.do(req, &game); err != nil {
		return domain.Game{}, err
	}
	return game, nil
}

func (c *Client) DeleteGame(token string, id int64) error {
	req, err := http.NewRequest(http.MethodDelete, c.gamePath(id), nil)
	if err != nil {
		return err
	}
	addAuthHeader(req, token)
	return c.do(req, nil)
}

func (c *Client) gamePath(id int64) string {
	return fmt.Sprintf("%s/games/%d", c.baseURL, id)
}

func (c *Client) jsonRequest(method, url, token string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
