// Package auth verifies session tokens issued by the external identity
// provider and carries the resulting caller identity through a request.
package auth

import "context"

// Identity is the caller as resolved from the session token.
// The zero value is the anonymous caller.
type Identity struct {
	UserID    string
	SessionID string
}

// Anonymous is the identity of a caller without a session
var Anonymous = Identity{}

// IsAnonymous reports whether no user could be resolved
func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

// Author returns the value persisted as a record's author: nil for anonymous callers
func (i Identity) Author() *string {
	if i.IsAnonymous() {
		return nil
	}
	id := i.UserID
	return &id
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous
func FromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Anonymous
	}
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Anonymous
}
