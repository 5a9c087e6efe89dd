/*Package access provides utilities for access control
 */
package access

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyAuthorization contextKey = "_authorization_"
)

// Authorization is a context object which stores the authenticated caller.
//
// It carries the subject identifier resolved from the bearer credential.
// An authorization is created fresh for every request and never cached
// across requests. Role verification for privileged actions happens
// separately in the gateway, against the role table, on every call.
//
// Authorizations are added to a request context with
//
//	ctx = auth.ContextWithAuthorization(ctx)
//
// and retrieved with
//
//	auth := AuthorizationFromContext(ctx)
type Authorization struct {
	Subject uuid.UUID `json:"subject"`
}

// ContextWithAuthorization returns a new context with this authorization added to it
func (a *Authorization) ContextWithAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, a)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	a, ok := ctx.Value(contextKeyAuthorization).(*Authorization)
	if ok {
		return a
	}
	return nil
}
