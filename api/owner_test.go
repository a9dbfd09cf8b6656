package api

import (
	"context"
	"testing"

	"taskflow-api/domain"
)

func TestResolveOwnerNilIdentity(t *testing.T) {
	if _, err := resolveOwner(context.Background(), newMockStore(), nil); err != errAuthRequired {
		t.Fatalf("expected errAuthRequired, got %v", err)
	}
}

func TestResolveOwnerCreatesOnFirstAccess(t *testing.T) {
	store := newMockStore()
	id := &Identity{Subject: "auth0|abc", Email: "new@example.com", Name: "New User"}

	owner, err := resolveOwner(context.Background(), store, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner.ID != "auth0|abc" || owner.Email != "new@example.com" {
		t.Fatalf("unexpected owner: %+v", owner)
	}
	if owner.Name == nil || *owner.Name != "New User" {
		t.Fatalf("expected name persisted, got %+v", owner.Name)
	}
	if len(store.owners) != 1 {
		t.Fatalf("expected 1 stored owner, got %d", len(store.owners))
	}
}

func TestResolveOwnerIsIdempotent(t *testing.T) {
	store := newMockStore()
	id := &Identity{Subject: "auth0|abc", Email: "user@example.com"}

	first, err := resolveOwner(context.Background(), store, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := resolveOwner(context.Background(), store, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("owner id changed across resolutions: %s vs %s", first.ID, second.ID)
	}
	if len(store.owners) != 1 {
		t.Fatalf("expected 1 stored owner, got %d", len(store.owners))
	}
}

func TestResolveOwnerMatchesByEmail(t *testing.T) {
	store := newMockStore()
	store.owners["legacy-id"] = domain.Owner{ID: "legacy-id", Email: "user@example.com"}

	owner, err := resolveOwner(context.Background(), store, &Identity{Subject: "auth0|new", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner.ID != "legacy-id" {
		t.Fatalf("expected existing owner by email, got %+v", owner)
	}
	if len(store.owners) != 1 {
		t.Fatal("no duplicate owner may be created")
	}
}

func TestResolveOwnerRefreshesProfile(t *testing.T) {
	store := newMockStore()
	oldName := "Old Name"
	store.owners["auth0|abc"] = domain.Owner{ID: "auth0|abc", Email: "user@example.com", Name: &oldName}

	owner, err := resolveOwner(context.Background(), store, &Identity{
		Subject: "auth0|abc",
		Email:   "user@example.com",
		Name:    "New Name",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner.Name == nil || *owner.Name != "New Name" {
		t.Fatalf("expected refreshed name, got %+v", owner.Name)
	}
	stored := store.owners["auth0|abc"]
	if stored.Name == nil || *stored.Name != "New Name" {
		t.Fatalf("expected refresh persisted, got %+v", stored.Name)
	}
}

func TestResolveOwnerMissingClaimsKeepProfile(t *testing.T) {
	store := newMockStore()
	name := "Keep Me"
	store.owners["auth0|abc"] = domain.Owner{ID: "auth0|abc", Email: "user@example.com", Name: &name}

	owner, err := resolveOwner(context.Background(), store, &Identity{Subject: "auth0|abc", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner.Name == nil || *owner.Name != "Keep Me" {
		t.Fatalf("missing claim must not erase stored name, got %+v", owner.Name)
	}
}

func TestResolveOwnerSyntheticEmail(t *testing.T) {
	store := newMockStore()
	owner, err := resolveOwner(context.Background(), store, &Identity{Subject: "auth0|no-email"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner.Email != "auth0|no-email@users.taskflow.local" {
		t.Fatalf("unexpected synthetic email: %s", owner.Email)
	}
}
