package posclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"pos-analytics/internal/apperr"
	"pos-analytics/internal/util"

	"go.uber.org/zap"
)

const loginPath = "/authentication/v1/authentication/login"

// machineClientAccessType is the access type the POS auth endpoint expects
// for server-to-server credentials.
const machineClientAccessType = "TOAST_MACHINE_CLIENT"

// exchangeTimeout bounds a single credential exchange. The exchange runs on
// its own deadline so one caller's cancellation cannot fail coalesced waiters.
const exchangeTimeout = 15 * time.Second

// SessionManager owns the single live bearer token for the process. A token
// is never handed out within the safety margin of its expiry; expiring
// tokens are replaced, never mutated, and concurrent callers coalesce onto
// a single in-flight exchange.
type SessionManager struct {
	baseURL      string
	clientID     string
	clientSecret string
	margin       time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	token   *bearerToken
	pending *refreshCall
}

type bearerToken struct {
	value     string
	issuedAt  time.Time
	expiresAt time.Time
}

// refreshCall is the in-progress exchange that coalesced callers wait on.
type refreshCall struct {
	done  chan struct{}
	value string
	err   error
}

// NewSessionManager creates a session manager for the given credentials.
func NewSessionManager(baseURL, clientID, clientSecret string, margin time.Duration, httpClient *http.Client) *SessionManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SessionManager{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		margin:       margin,
		httpClient:   httpClient,
		logger:       util.GetLogger(),
		now:          time.Now,
	}
}

// Token returns a bearer token valid for at least the safety margin,
// performing a credential exchange first if the held token is missing or
// about to expire. Safe for concurrent use: at most one exchange is in
// flight, and every waiter receives its token or its failure.
func (s *SessionManager) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if tok := s.token; tok != nil && s.now().Before(tok.expiresAt.Add(-s.margin)) {
		value := tok.value
		s.mu.Unlock()
		return value, nil
	}

	call := s.pending
	leader := call == nil
	if leader {
		call = &refreshCall{done: make(chan struct{})}
		s.pending = call
	}
	s.mu.Unlock()

	if leader {
		s.runExchange(call)
	}

	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate discards the held token if its value still matches rejected.
// The guard keeps a 401 retry from throwing away a token that a concurrent
// refresh already replaced.
func (s *SessionManager) Invalidate(rejected string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && s.token.value == rejected {
		s.token = nil
	}
}

func (s *SessionManager) runExchange(call *refreshCall) {
	value, expiresAt, err := s.exchange()

	s.mu.Lock()
	if err == nil {
		s.token = &bearerToken{value: value, issuedAt: s.now(), expiresAt: expiresAt}
		call.value = value
	}
	call.err = err
	s.pending = nil
	s.mu.Unlock()

	close(call.done)
}

type loginRequest struct {
	ClientID       string `json:"clientId"`
	ClientSecret   string `json:"clientSecret"`
	UserAccessType string `json:"userAccessType"`
}

type loginResponse struct {
	Token struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	} `json:"token"`
}

func (s *SessionManager) exchange() (string, time.Time, error) {
	body, err := json.Marshal(loginRequest{
		ClientID:       s.clientID,
		ClientSecret:   s.clientSecret,
		UserAccessType: machineClientAccessType,
	})
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindInternal, err, "marshal login request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindInternal, err, "build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		util.TokenRefreshFailuresTotal.WithLabelValues("network").Inc()
		return "", time.Time{}, apperr.Wrap(apperr.KindTransientAuth, err, "credential exchange request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		util.TokenRefreshFailuresTotal.WithLabelValues("network").Inc()
		return "", time.Time{}, apperr.Wrap(apperr.KindTransientAuth, err, "read credential exchange response")
	}

	if resp.StatusCode >= 500 {
		util.TokenRefreshFailuresTotal.WithLabelValues("upstream_5xx").Inc()
		return "", time.Time{}, apperr.New(apperr.KindTransientAuth, "credential exchange returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		util.TokenRefreshFailuresTotal.WithLabelValues("rejected").Inc()
		return "", time.Time{}, apperr.New(apperr.KindAuthFailure, "credential exchange rejected with %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var login loginResponse
	if err := json.Unmarshal(respBody, &login); err != nil {
		util.TokenRefreshFailuresTotal.WithLabelValues("malformed").Inc()
		return "", time.Time{}, apperr.Wrap(apperr.KindAuthFailure, err, "malformed credential exchange response")
	}
	if login.Token.AccessToken == "" || login.Token.ExpiresIn <= 0 {
		util.TokenRefreshFailuresTotal.WithLabelValues("malformed").Inc()
		return "", time.Time{}, apperr.New(apperr.KindAuthFailure, "credential exchange response missing token")
	}

	util.TokenRefreshesTotal.Inc()
	expiresAt := s.now().Add(time.Duration(login.Token.ExpiresIn) * time.Second)
	s.logger.Info("Credential exchanged",
		zap.Time("expires_at", expiresAt))

	return login.Token.AccessToken, expiresAt, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
