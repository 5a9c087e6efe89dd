package access_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/pointb-tech/wayfarer/core/access"
)

func TestSessionAuthoritySubject(t *testing.T) {
	subject := uuid.New()
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"` + subject.String() + `"}`))
	}))
	defer authority.Close()

	verifier := access.NewSessionAuthority(&access.SessionAuthorityBuilder{
		URL:        authority.URL,
		ServiceKey: "service-key",
	})
	resolved, err := verifier.Subject(context.Background(), "valid-token")
	assert.NoError(t, err)
	assert.Equal(t, subject, resolved)
}

func TestSessionAuthorityRejection(t *testing.T) {
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer authority.Close()

	verifier := access.NewSessionAuthority(&access.SessionAuthorityBuilder{URL: authority.URL})
	_, err := verifier.Subject(context.Background(), "bad-token")
	assert.ErrorIs(t, err, access.ErrUnauthenticated)
}

func TestSessionAuthorityOutageFailsClosed(t *testing.T) {
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	authority.Close() // gone before the call

	verifier := access.NewSessionAuthority(&access.SessionAuthorityBuilder{URL: authority.URL})
	_, err := verifier.Subject(context.Background(), "any-token")
	assert.ErrorIs(t, err, access.ErrUnauthenticated)
}

func TestIdentityMiddleware(t *testing.T) {
	subject := uuid.New()
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid-token" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"` + subject.String() + `"}`))
	}))
	defer authority.Close()

	router := mux.NewRouter()
	router.Use(access.NewIdentityMiddleware(access.NewSessionAuthority(&access.SessionAuthorityBuilder{URL: authority.URL})))
	var got *access.Authorization
	router.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		got = access.AuthorizationFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.Header.Set("Authorization", "Bearer valid-token")
	router.ServeHTTP(httptest.NewRecorder(), r)
	if assert.NotNil(t, got) {
		assert.Equal(t, subject, got.Subject)
	}

	// an invalid token leaves the request unauthenticated, it does not fail
	got = nil
	r = httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)
}

func TestBackdoorMiddleware(t *testing.T) {
	subject := uuid.New()
	secret := "unit-test-secret"

	router := mux.NewRouter()
	router.Use(access.NewBackdoorMiddleware(&access.BackdoorMiddlewareBuilder{Secret: secret}))
	var got *access.Authorization
	router.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		got = access.AuthorizationFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.Header.Set("Authorization", "Bearer "+access.SignSubjectToken(secret, subject))
	router.ServeHTTP(httptest.NewRecorder(), r)
	if assert.NotNil(t, got) {
		assert.Equal(t, subject, got.Subject)
	}

	// a token signed with another secret does not authenticate
	got = nil
	r = httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.Header.Set("Authorization", "Bearer "+access.SignSubjectToken("other-secret", subject))
	router.ServeHTTP(httptest.NewRecorder(), r)
	assert.Nil(t, got)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", access.BearerToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", access.BearerToken(r))

	r.Header.Set("Authorization", "abc")
	assert.Equal(t, "abc", access.BearerToken(r))

	r.Header.Set("Authorization", "null")
	assert.Equal(t, "", access.BearerToken(r))
}
