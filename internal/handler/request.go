package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/auth"
)

// callerID pulls the authenticated user out of the request context. Routes
// behind the auth middleware can rely on it being set.
func callerID(r *http.Request) (uuid.UUID, *AppError) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}
	return id, nil
}

// pathUUID parses a uuid path segment. A malformed id answers the same as a
// missing resource so ids cannot be probed by shape.
func pathUUID(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}
