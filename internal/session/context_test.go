package session

import (
	"context"
	"testing"
)

func TestActorRoundTripThroughContext(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor on a bare context")
	}

	ctx := WithActor(context.Background(), Actor{User: "priya", Roles: []string{"Branch Manager"}})
	got, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if got.User != "priya" || !got.HasRole("Branch Manager") || got.HasRole(AdministratorRole) {
		t.Fatalf("unexpected actor: %#v", got)
	}
}

func TestSystemActorIsAdministrator(t *testing.T) {
	if !System().HasRole(AdministratorRole) {
		t.Fatal("system actor must carry the administrator role")
	}
}
