package gamesclient

import "gameshelf/pkg/domain"

// TokenSource supplies the caller's current access token. It is read on
// every call, so a source backed by a refreshing session always hands the
// API a live token.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// Session binds a token source to a client so long-lived consumers do not
// thread the token through every call.
type Session struct {
	client *Client
	tokens TokenSource
}

// Bind returns a Session using ts for credentials.
func (c *Client) Bind(ts TokenSource) *Session {
	return &Session{client: c, tokens: ts}
}

func (s *Session) ListGames() ([]domain.Game, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return nil, err
	}
	return s.client.ListGames(token)
}

func (s *Session) CurrentGame() (domain.Game, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return domain.Game{}, err
	}
	return s.client.CurrentGame(token)
}

func (s *Session) GetGame(id int64) (domain.Game, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return domain.Game{}, err
	}
	return s.client.GetGame(token, id)
}

func (s *Session) CreateGame(input domain.CreateInput) (domain.Game, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return domain.Game{}, err
	}
	return s.client.CreateGame(token, input)
}

func (s *Session) UpdateGame(id int64, patch domain.GamePatch) (domain.Game, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return domain.Game{}, err
	}
	return s.client.UpdateGame(token, id, patch)
}

func (s *Session) DeleteGame(id int64) error {
	token, err := s.tokens.Token()
	if err != nil {
		return err
	}
	return s.client.DeleteGame(token, id)
}

func (s *Session) Snapshot() (Snapshot, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return Snapshot{}, err
	}
	return s.client.Snapshot(token)
}
