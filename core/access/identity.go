package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pointb-tech/wayfarer/core/logger"
)

// ErrUnauthenticated is returned by a Verifier when the credential does not
// resolve to a subject.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier resolves an opaque bearer credential to a subject identifier.
//
// Implementations make exactly one verification call per request and do not
// cache results. A credential that cannot be verified, for whatever reason,
// resolves to ErrUnauthenticated; verification-service outages are treated
// the same way, the caller simply is not authenticated.
type Verifier interface {
	Subject(ctx context.Context, token string) (uuid.UUID, error)
}

// SessionAuthorityBuilder is a helper builder for the SessionAuthority verifier
type SessionAuthorityBuilder struct {
	// URL is the base url of the session authority, e.g. "https://auth.example.com"
	URL string
	// ServiceKey is the api key the authority expects alongside the user's bearer token
	ServiceKey string
	// Client is the http client to use. This is optional.
	Client *http.Client
}

// SessionAuthority verifies bearer tokens against the external session
// authority. It asks the authority whose subject the token belongs to by
// forwarding the token; it performs no local token inspection.
type SessionAuthority struct {
	url        string
	serviceKey string
	client     *http.Client
}

// NewSessionAuthority creates a session authority verifier
func NewSessionAuthority(sab *SessionAuthorityBuilder) *SessionAuthority {
	if sab.URL == "" {
		panic("session authority URL is missing")
	}
	client := sab.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SessionAuthority{
		url:        strings.TrimSuffix(sab.URL, "/"),
		serviceKey: sab.ServiceKey,
		client:     client,
	}
}

// Subject asks the session authority for the subject of the passed token.
func (s *SessionAuthority) Subject(ctx context.Context, token string) (uuid.UUID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/user", nil)
	if err != nil {
		return uuid.UUID{}, ErrUnauthenticated
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if s.serviceKey != "" {
		req.Header.Set("apikey", s.serviceKey)
	}
	res, err := s.client.Do(req)
	if err != nil {
		// the authority is unreachable, fail closed
		logger.FromContext(ctx).WithError(err).Warningln("session authority unavailable")
		return uuid.UUID{}, ErrUnauthenticated
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return uuid.UUID{}, ErrUnauthenticated
	}
	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		return uuid.UUID{}, ErrUnauthenticated
	}
	subject, err := uuid.Parse(user.ID)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("session authority returned invalid subject: %w", ErrUnauthenticated)
	}
	return subject, nil
}

// BearerToken extracts the bearer credential from a request. It accepts the
// standard "Authorization: Bearer" header or a plain token in the header.
func BearerToken(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) == 0 || bearer == "null" {
		return ""
	}
	if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
		return bearer[7:]
	}
	return bearer
}

// NewIdentityMiddleware returns a middleware handler which resolves the
// request's bearer credential through the passed verifier and stores the
// resolved subject in the request context.
//
// The middleware never rejects a request on its own: actions that require
// authentication are enforced by the gateway dispatcher, which fails with
// http.StatusUnauthorized when no authorization is present. This keeps the
// unauthenticated setup action possible.
func NewIdentityMiddleware(verifier Verifier) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}
			token := BearerToken(r)
			if len(token) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}
			subject, err := verifier.Subject(r.Context(), token)
			if err != nil {
				h.ServeHTTP(w, r)
				return
			}
			auth := &Authorization{Subject: subject}
			ctx := auth.ContextWithAuthorization(r.Context())
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, subject.String())
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
