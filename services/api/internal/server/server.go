package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gameshelf/internal/ratelimit"
	"gameshelf/internal/usertoken"
	"gameshelf/internal/util"
	"gameshelf/pkg/domain"
	"gameshelf/pkg/store"
	"gameshelf/services/api/internal/identity"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	Store                      store.Store
	TokenVerifier              *usertoken.Verifier
	Identity                   identity.Resolver
	RedisAddr                  string
	RedisPassword              string
	MutationRateLimitPerMinute int
	FrontendOrigins            []string
	TrustedProxies             *util.TrustedProxies
}

// Server exposes the game-library HTTP API.
type Server struct {
	store           store.Store
	tokenVerifier   *usertoken.Verifier
	identity        identity.Resolver
	mux             *http.ServeMux
	frontendOrigins []string
	trustedProxies  *util.TrustedProxies
	mutationLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server requires a store")
	}
	if cfg.Identity == nil {
		return nil, errors.New("server requires an identity resolver")
	}
	mutationLimit := cfg.MutationRateLimitPerMinute
	if mutationLimit <= 0 {
		mutationLimit = 60
	}
	mutationLimiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "gameshelf:api:ratelimit:mutation", mutationLimit, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init mutation limiter: %w", err)
	}
	s := &Server{
		store:           cfg.Store,
		tokenVerifier:   cfg.TokenVerifier,
		identity:        cfg.Identity,
		mux:             http.NewServeMux(),
		frontendOrigins: cfg.FrontendOrigins,
		trustedProxies:  cfg.TrustedProxies,
		mutationLimiter: mutationLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(
		util.WithCORS(s.frontendOrigins,
			util.WithRequestID(
				util.WithRequestLog("api", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/games", s.authenticated(s.handleGames))
	s.mux.Handle("/games/", s.authenticated(s.handleGameByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authHandler receives the resolved owner id; handlers never read the owner
// from the request payload.
type authHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := s.authorize(r)
		if !ok {
			s.audit(r, "api.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, ownerID)
	})
}

// authorize resolves the caller from the bearer token: a local JWKS
// signature check first, then the authoritative identity-platform lookup.
// The two must agree on the subject.
func (s *Server) authorize(r *http.Request) (string, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "api.token.verify", "fail", "reason", "missing_token")
		return "", false
	}
	subject := ""
	if s.tokenVerifier != nil {
		sub, err := s.tokenVerifier.VerifySubject(token)
		if err != nil {
			s.audit(r, "api.token.verify", "fail", "reason", "invalid_signature_or_claims")
			return "", false
		}
		subject = sub
	}
	ownerID, err := s.identity.UserID(token)
	if err != nil {
		s.audit(r, "api.token.verify", "fail", "reason", "identity_lookup_failed")
		return "", false
	}
	if subject != "" && subject != ownerID {
		s.audit(r, "api.token.verify", "fail", "reason", "subject_mismatch")
		return "", false
	}
	return ownerID, true
}

// /games
func (s *Server) handleGames(w http.ResponseWriter, r *http.Request, ownerID string) {
	switch r.Method {
	case http.MethodGet:
		s.handleListGames(w, ownerID)
	case http.MethodPost:
		s.handleCreateGame(w, r, ownerID)
	default:
		methodNotAllowed(w)
	}
}

// /games/current and /games/{id}
func (s *Server) handleGameByID(w http.ResponseWriter, r *http.Request, ownerID string) {
	rest := strings.TrimPrefix(r.URL.Path, "/games/")
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	if rest == "current" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleCurrentGame(w, ownerID)
		return
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleGetGame(w, ownerID, id)
	case http.MethodPatch:
		s.handleUpdateGame(w, r, ownerID, id)
	case http.MethodDelete:
		s.handleDeleteGame(w, r, ownerID, id)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListGames(w http.ResponseWriter, ownerID string) {
	games, err := s.store.ListGames(ownerID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if games == nil {
		games = []domain.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

// handleCurrentGame returns the now-playing game, falling back to the most
// recently played one. The list is already in display order, so the first
// entry is the answer in both cases.
func (s *Server) handleCurrentGame(w http.ResponseWriter, ownerID string) {
	games, err := s.store.ListGames(ownerID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(games) == 0 {
		writeError(w, http.StatusNotFound, "no games found")
		return
	}
	if current, ok := domain.CurrentGame(games); ok {
		writeJSON(w, http.StatusOK, current)
		return
	}
	writeJSON(w, http.StatusOK, games[0])
}

func (s *Server) handleGetGame(w http.ResponseWriter, ownerID string, id int64) {
	game, err := s.store.GetGame(ownerID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request, ownerID string) {
	if !s.allowMutation(w, r) {
		return
	}
	var input domain.CreateInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	game, err := s.store.CreateGame(ownerID, input)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.audit(r, "api.games.create", "success", "owner_id", ownerID, "game_id", game.ID)
	writeJSON(w, http.StatusCreated, game)
}

func (s *Server) handleUpdateGame(w http.ResponseWriter, r *http.Request, ownerID string, id int64) {
	if !s.allowMutation(w, r) {
		return
	}
	var patch domain.GamePatch
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// A patch with no recognized fields reads the record instead of opening a
	// write transaction.
	if patch.Empty() {
		s.handleGetGame(w, ownerID, id)
		return
	}
	game, err := s.store.UpdateGame(ownerID, id, patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.audit(r, "api.games.update", "success", "owner_id", ownerID, "game_id", id)
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request, ownerID string, id int64) {
	if !s.allowMutation(w, r) {
		return
	}
	if err := s.store.DeleteGame(ownerID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.audit(r, "api.games.delete", "success", "owner_id", ownerID, "game_id", id)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) allowMutation(w http.ResponseWriter, r *http.Request) bool {
	key := util.ClientIP(r, s.trustedProxies)
	if s.mutationLimiter.Allow(key) {
		return true
	}
	s.audit(r, "api.ratelimit", "rate_limited", "ip", key)
	retrySecs := int64(s.mutationLimiter.RetryAfter().Seconds()) + 1
	w.Header().Set("Retry-After", strconv.FormatInt(retrySecs, 10))
	writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store and model failures onto the HTTP contract.
// Not-found and not-owned are deliberately the same 404.
func writeStoreError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	default:
		slog.Error("store failure", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}
