package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"gameshelf/internal/usertoken"
	"gameshelf/pkg/domain"
	"gameshelf/pkg/store"
	"gameshelf/services/api/internal/identity"
)

const (
	ownerAlice = "3b9e8b4f-7c2d-4e1a-9f60-1d2c3b4a5e01"
	ownerBob   = "c4d5e6f7-a8b9-4c0d-8e1f-2a3b4c5d6e02"

	testAnonKey = "anon-key-test"
	testIssuer  = "https://proj.supabase.test/auth/v1"
)

// harness runs the full stack against in-memory backends: a stub JWKS
// endpoint, a stub identity platform, miniredis, and the memory store.
type harness struct {
	t       *testing.T
	api     *httptest.Server
	store   *store.MemoryStore
	signKey *ecdsa.PrivateKey

	mu     sync.Mutex
	tokens map[string]string
}

func newHarness(t *testing.T, mutationLimit int) *harness {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	h := &harness{
		t:       t,
		store:   store.NewMemoryStore(),
		signKey: signKey,
		tokens:  map[string]string{},
	}

	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		byteLen := (signKey.Curve.Params().BitSize + 7) / 8
		resp := map[string]any{"keys": []map[string]string{{
			"kty": "EC",
			"crv": "P-256",
			"kid": "kid-1",
			"x":   base64.RawURLEncoding.EncodeToString(signKey.X.FillBytes(make([]byte, byteLen))),
			"y":   base64.RawURLEncoding.EncodeToString(signKey.Y.FillBytes(make([]byte, byteLen))),
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(jwksServer.Close)

	identityServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != testAnonKey {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		h.mu.Lock()
		userID, ok := h.tokens[token]
		h.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": userID})
	}))
	t.Cleanup(identityServer.Close)

	redisSrv := miniredis.RunT(t)

	verifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL: jwksServer.URL,
		Issuer:  testIssuer,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	resolver, err := identity.NewCachedResolver(
		identity.NewClient(identityServer.URL, testAnonKey), redisSrv.Addr(), "", time.Minute)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	srv, err := New(Config{
		Store:                      h.store,
		TokenVerifier:              verifier,
		Identity:                   resolver,
		RedisAddr:                  redisSrv.Addr(),
		MutationRateLimitPerMinute: mutationLimit,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	h.api = httptest.NewServer(srv.Router())
	t.Cleanup(h.api.Close)
	return h
}

// tokenFor mints a signed access token for the subject and registers it with
// the stub identity platform.
func (h *harness) tokenFor(subject string) string {
	h.t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString(h.signKey)
	if err != nil {
		h.t.Fatalf("sign token: %v", err)
	}
	h.mu.Lock()
	h.tokens[signed] = subject
	h.mu.Unlock()
	return signed
}

func (h *harness) do(method, path, token, body string) *http.Response {
	h.t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.api.URL+path, reader)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeGame(t *testing.T, resp *http.Response) domain.Game {
	t.Helper()
	defer resp.Body.Close()
	var game domain.Game
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		t.Fatalf("decode game: %v", err)
	}
	return game
}

func TestGameLifecycle(t *testing.T) {
	h := newHarness(t, 1000)
	token := h.tokenFor(ownerAlice)

	resp := h.do(http.MethodPost, "/games", token, `{"title":"Hollow Knight","platform":"Switch","estimated_hours":40}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}
	created := decodeGame(t, resp)
	if created.ID == 0 || created.Status != domain.StatusBacklog || created.CompletionPercent != 0 {
		t.Fatalf("create: unexpected game %+v", created)
	}

	resp = h.do(http.MethodPatch, "/games/1", token, `{"add_hours":10}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch hours: status = %d", resp.StatusCode)
	}
	updated := decodeGame(t, resp)
	if updated.HoursPlayed != 10 || updated.CompletionPercent != 25 {
		t.Fatalf("patch hours: hours=%v completion=%d", updated.HoursPlayed, updated.CompletionPercent)
	}

	resp = h.do(http.MethodPatch, "/games/1", token, `{"is_current":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch current: status = %d", resp.StatusCode)
	}
	current := decodeGame(t, resp)
	if !current.IsCurrent || current.Status != domain.StatusPlaying || current.LastNowPlayingAt == nil {
		t.Fatalf("patch current: unexpected game %+v", current)
	}

	resp = h.do(http.MethodGet, "/games/current", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get current: status = %d", resp.StatusCode)
	}
	if got := decodeGame(t, resp); got.ID != created.ID {
		t.Fatalf("get current: id = %d, want %d", got.ID, created.ID)
	}

	resp = h.do(http.MethodDelete, "/games/1", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d", resp.StatusCode)
	}
	var deleted map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&deleted); err != nil {
		t.Fatalf("decode delete response: %v", err)
	}
	resp.Body.Close()
	if deleted["deleted"] != created.ID {
		t.Fatalf("delete: body = %v", deleted)
	}

	resp = h.do(http.MethodDelete, "/games/1", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestEmptyPatchReturnsUnchangedRecord(t *testing.T) {
	h := newHarness(t, 1000)
	token := h.tokenFor(ownerAlice)

	h.do(http.MethodPost, "/games", token, `{"title":"Celeste","platform":"PC"}`).Body.Close()
	resp := h.do(http.MethodPatch, "/games/1", token, `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("empty patch: status = %d", resp.StatusCode)
	}
	if got := decodeGame(t, resp); got.HoursPlayed != 0 || got.Status != domain.StatusBacklog {
		t.Fatalf("empty patch changed record: %+v", got)
	}

	resp = h.do(http.MethodPatch, "/games/99", token, `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty patch on missing id: status = %d, want 404", resp.StatusCode)
	}
}

func TestRequiresValidToken(t *testing.T) {
	h := newHarness(t, 1000)

	resp := h.do(http.MethodGet, "/games", "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", resp.StatusCode)
	}

	resp = h.do(http.MethodGet, "/games", "not-a-jwt", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d", resp.StatusCode)
	}
}

func TestCrossOwnerAccessIsNotFound(t *testing.T) {
	h := newHarness(t, 1000)
	alice := h.tokenFor(ownerAlice)
	bob := h.tokenFor(ownerBob)

	resp := h.do(http.MethodPost, "/games", alice, `{"title":"Celeste","platform":"PC"}`)
	created := decodeGame(t, resp)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		body := ""
		if method == http.MethodPatch {
			body = `{"add_hours":1}`
		}
		resp := h.do(method, "/games/1", bob, body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s as other owner: status = %d, want 404", method, resp.StatusCode)
		}
	}

	// The owner still sees the game untouched.
	resp = h.do(http.MethodGet, "/games/1", alice, "")
	if got := decodeGame(t, resp); got.ID != created.ID || got.HoursPlayed != 0 {
		t.Fatalf("owner view changed: %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, 1000)
	token := h.tokenFor(ownerAlice)

	cases := []struct {
		name string
		body string
	}{
		{"empty title", `{"title":"  ","platform":"PC"}`},
		{"unknown platform", `{"title":"Celeste","platform":"Amiga"}`},
		{"zero estimate", `{"title":"Celeste","platform":"PC","estimated_hours":0}`},
		{"negative estimate", `{"title":"Celeste","platform":"PC","estimated_hours":-5}`},
		{"malformed json", `{"title":`},
	}
	for _, tc := range cases {
		resp := h.do(http.MethodPost, "/games", token, tc.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
	}
}

func TestCurrentFallsBackToMostRecent(t *testing.T) {
	h := newHarness(t, 1000)
	token := h.tokenFor(ownerAlice)

	resp := h.do(http.MethodGet, "/games/current", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty library: status = %d, want 404", resp.StatusCode)
	}

	h.do(http.MethodPost, "/games", token, `{"title":"Celeste","platform":"PC"}`).Body.Close()
	h.do(http.MethodPost, "/games", token, `{"title":"Tunic","platform":"PS5"}`).Body.Close()

	// Nothing is marked current, so the answer is the top of display order.
	resp = h.do(http.MethodGet, "/games/current", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fallback: status = %d", resp.StatusCode)
	}
	if got := decodeGame(t, resp); got.Title != "Tunic" {
		t.Fatalf("fallback: title = %q, want Tunic", got.Title)
	}

	h.do(http.MethodPatch, "/games/1", token, `{"is_current":true}`).Body.Close()
	resp = h.do(http.MethodGet, "/games/current", token, "")
	if got := decodeGame(t, resp); got.Title != "Celeste" {
		t.Fatalf("current: title = %q, want Celeste", got.Title)
	}
}

func TestListReturnsDisplayOrder(t *testing.T) {
	h := newHarness(t, 1000)
	token := h.tokenFor(ownerAlice)

	h.do(http.MethodPost, "/games", token, `{"title":"Celeste","platform":"PC"}`).Body.Close()
	h.do(http.MethodPost, "/games", token, `{"title":"Tunic","platform":"PS5"}`).Body.Close()
	h.do(http.MethodPatch, "/games/1", token, `{"is_current":true}`).Body.Close()

	resp := h.do(http.MethodGet, "/games", token, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status = %d", resp.StatusCode)
	}
	var games []domain.Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(games) != 2 || games[0].Title != "Celeste" || games[1].Title != "Tunic" {
		t.Fatalf("list order: %+v", games)
	}
}

func TestMutationRateLimit(t *testing.T) {
	h := newHarness(t, 2)
	token := h.tokenFor(ownerAlice)

	for i := 0; i < 2; i++ {
		resp := h.do(http.MethodPost, "/games", token, `{"title":"Celeste","platform":"PC"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: status = %d", i, resp.StatusCode)
		}
	}
	resp := h.do(http.MethodPost, "/games", token, `{"title":"Celeste","platform":"PC"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("third create: status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("rate limited response missing Retry-After")
	}

	// Reads are never limited.
	resp = h.do(http.MethodGet, "/games", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list while limited: status = %d", resp.StatusCode)
	}
}
