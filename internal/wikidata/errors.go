package wikidata

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a name search produces no matching entity.
// The HTTP layer maps it to a 404.
var ErrNotFound = errors.New("no matching entity")

// AuthError reports a failed client-credentials exchange. It is fatal to
// the request that needed the token, not just to one item.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("credential exchange failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamQueryError reports a failed SPARQL query execution: the whole
// batch depends on it, so it propagates to the caller.
type UpstreamQueryError struct {
	Status  int
	Message string
}

func (e *UpstreamQueryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("query endpoint returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("query endpoint unreachable: %s", e.Message)
}

// UpstreamEntityError reports a failed statements or label fetch for one
// entity. The pipeline converts it into a per-item skip.
type UpstreamEntityError struct {
	EntityID string
	Status   int
	Err      error
}

func (e *UpstreamEntityError) Error() string {
	return fmt.Sprintf("entity fetch failed for %s: %v", e.EntityID, e.Err)
}

func (e *UpstreamEntityError) Unwrap() error { return e.Err }
