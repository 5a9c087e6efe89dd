package access

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pointb-tech/wayfarer/core/logger"
)

// BackdoorMiddlewareBuilder is a helper builder for the backdoor middleware
type BackdoorMiddlewareBuilder struct {
	// Secret is the shared HS256 signing secret. Mandatory.
	Secret string
}

// NewBackdoorMiddleware returns a middleware handler which accepts locally
// signed HS256 tokens instead of calling the session authority. The subject
// is taken from the token's "sub" claim.
//
// The backdoor exists for development setups and unit tests which run
// without a session authority. It must not be enabled in production; the
// service enables it only when BACKDOOR_SECRET is configured.
//
// With curl, use -H 'Authorization: Bearer <token>' where token was created
// with SignSubjectToken.
func NewBackdoorMiddleware(bmb *BackdoorMiddlewareBuilder) mux.MiddlewareFunc {
	if bmb.Secret == "" {
		panic("backdoor middleware requires a secret")
	}
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(bmb.Secret), nil
	}
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}
			tokenString := BearerToken(r)
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r)
				return
			}
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, keyFunc)
			if err != nil || !token.Valid {
				// not a backdoor token, leave it to the session authority
				h.ServeHTTP(w, r)
				return
			}
			subject, err := uuid.Parse(claims.Subject)
			if err != nil {
				h.ServeHTTP(w, r)
				return
			}
			auth := &Authorization{Subject: subject}
			ctx := auth.ContextWithAuthorization(r.Context())
			ctx, rlog := logger.ContextWithLoggerIdentity(ctx, subject.String())
			rlog.Debugln("authenticated through backdoor token")
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignSubjectToken creates a backdoor token for the passed subject, signed
// with the shared secret. The token expires after one hour.
func SignSubjectToken(secret string, subject uuid.UUID) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}
