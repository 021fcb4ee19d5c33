package evacalor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens are refreshed this long before their exp claim to keep a call
// from racing the platform-side expiry.
const tokenExpiryLeeway = 30 * time.Second

// session holds the authenticated context of a connection. Token state is
// mutex-guarded so invalidation and re-authentication stay atomic even if
// a caller ignores the single-caller contract documented on Connection.
type session struct {
	mu           sync.Mutex
	token        string
	refreshToken string
	expiresAt    time.Time
}

func (s *session) set(token, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
	s.expiresAt = tokenExpiry(token)
	tokenValid.Set(1)
}

// invalidate marks the token unusable, forcing the next authorized call to
// re-authenticate. Called when the platform answers 401 mid-session.
func (s *session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	tokenValid.Set(0)
}

func (s *session) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *session) currentRefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// usable reports whether the token can authorize a call right now. A token
// without an exp claim is trusted until the platform rejects it.
func (s *session) usable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return false
	}
	if s.expiresAt.IsZero() {
		return true
	}
	return time.Until(s.expiresAt) > tokenExpiryLeeway
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// platform signs its tokens server-side and this client only needs the
// expiry. Tokens that do not parse get a zero expiry.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// signup registers the client token as an app installation. The platform
// requires this handshake before a login and answers 201 on success,
// including for an already registered installation.
func (c *Connection) signup(ctx context.Context) error {
	payload := signupRequest{
		PhoneType:              "Android",
		PhoneID:                c.cfg.ClientToken,
		PhoneVersion:           "1.0",
		Language:               "en",
		IDApp:                  c.cfg.ClientToken,
		PushNotificationToken:  c.cfg.ClientToken,
		PushNotificationActive: false,
	}

	resp, err := c.post(ctx, pathAppSignup, payload, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return &AuthError{Op: "appSignup", StatusCode: resp.StatusCode, Message: "app registration refused"}
	}
	return nil
}

// login authenticates with the configured credentials and stores the token
// pair. The login call itself is authorized by the client token.
func (c *Connection) login(ctx context.Context) error {
	payload := loginRequest{Email: c.cfg.Email, Password: c.cfg.Password}
	headers := map[string]string{
		headerLocal:         "true",
		headerAuthorization: c.cfg.ClientToken,
	}

	resp, err := c.post(ctx, pathUserLogin, payload, headers)
	if err != nil {
		loginFailure.Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		loginFailure.Inc()
		return &AuthError{Op: "userLogin", StatusCode: resp.StatusCode, Message: "login refused, check credentials"}
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		loginFailure.Inc()
		return &ServiceError{Op: "userLogin", Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if out.Token == "" {
		loginFailure.Inc()
		return &ServiceError{Op: "userLogin", Message: "response carries no token"}
	}

	c.sess.set(out.Token, out.RefreshToken)
	loginSuccess.Inc()
	return nil
}

// refreshSession exchanges the refresh token for a new auth token. A
// refusal falls back to a full login; refresh tokens age out server-side
// without notice. Transport failures propagate without the fallback.
func (c *Connection) refreshSession(ctx context.Context) error {
	refreshToken := c.sess.currentRefreshToken()
	if refreshToken == "" {
		return c.login(ctx)
	}

	resp, err := c.post(ctx, pathRefreshToken, refreshRequest{RefreshToken: refreshToken}, nil)
	if err != nil {
		refreshFailure.Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		refreshFailure.Inc()
		return c.login(ctx)
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		refreshFailure.Inc()
		return &ServiceError{Op: "refreshToken", Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if out.Token == "" {
		refreshFailure.Inc()
		return &ServiceError{Op: "refreshToken", Message: "response carries no token"}
	}

	c.sess.set(out.Token, "")
	refreshSuccess.Inc()
	return nil
}

// ensureValid guarantees a usable token before an authorized call,
// refreshing (and if need be re-logging-in) an expired or invalidated one.
func (c *Connection) ensureValid(ctx context.Context) error {
	if c.sess.usable() {
		return nil
	}
	return c.refreshSession(ctx)
}
