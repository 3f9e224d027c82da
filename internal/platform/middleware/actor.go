package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const ActorIDHeader = "X-Actor-ID"

type actorContextKey string

const actorKey actorContextKey = "actor_id"

// Actor extracts the acting clinician/staff identity from the X-Actor-ID
// header and stores it in the request context. Authentication is handled
// upstream; this middleware only carries the identity through to the
// domain layer, which requires it on every mutating operation.
func Actor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(ActorIDHeader)
			if raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					ctx := context.WithValue(c.Request().Context(), actorKey, id)
					c.SetRequest(c.Request().WithContext(ctx))
					c.Set("actor_id", id.String())
				}
			}
			return next(c)
		}
	}
}

// ActorFromContext returns the acting user id, or uuid.Nil when the request
// carried no actor identity.
func ActorFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(actorKey).(uuid.UUID)
	return id
}

// WithActor returns a context carrying the given actor identity. Used by
// internal callers and tests that bypass the HTTP layer.
func WithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey, id)
}
