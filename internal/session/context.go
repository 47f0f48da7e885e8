// Package session carries the acting identity through a context.
package session

import (
	"context"
	"slices"
)

type ctxKey string

const actorContextKey ctxKey = "taskify.session.actor"

// AdministratorRole bypasses every permission check.
const AdministratorRole = "Administrator"

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	User  string
	Roles []string
}

func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// System is the actor used by scheduled jobs.
func System() Actor {
	return Actor{User: "system", Roles: []string{AdministratorRole}}
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	v := ctx.Value(actorContextKey)
	a, ok := v.(Actor)
	return a, ok
}
