package api

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"taskflow-api/domain"
)

// errAuthRequired signals that no owner could be resolved for the request.
var errAuthRequired = errors.New("auth required")

const syntheticEmailDomain = "users.taskflow.local"

// resolveOwner maps a verified identity to the owner record every repository
// call is scoped by. Resolution order: owner by the identity's stable id,
// then lookup-or-create by email. Owners are created lazily on first
// authenticated access and their profile fields refreshed when the provider
// reports changes.
func resolveOwner(ctx context.Context, store Storage, id *Identity) (*domain.Owner, error) {
	if id == nil {
		return nil, errAuthRequired
	}

	email := strings.TrimSpace(id.Email)
	if email == "" && id.Subject != "" {
		// Some providers issue tokens without an email claim; derive a
		// stable synthetic address so upsert-by-email still converges.
		email = id.Subject + "@" + syntheticEmailDomain
	}
	if id.Subject == "" && email == "" {
		return nil, errAuthRequired
	}

	if id.Subject != "" {
		owner, err := store.GetOwner(ctx, id.Subject)
		if err != nil {
			return nil, err
		}
		if owner != nil {
			return refreshOwnerProfile(ctx, store, owner, id, email)
		}
	}

	owner, err := store.FindOwnerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		return refreshOwnerProfile(ctx, store, owner, id, email)
	}

	ownerID := id.Subject
	if ownerID == "" {
		ownerID = uuid.NewString()
	}
	created := domain.Owner{
		ID:      ownerID,
		Email:   email,
		Name:    optionalText(id.Name),
		Picture: optionalText(id.Picture),
	}
	if err := store.UpsertOwner(ctx, created); err != nil {
		return nil, err
	}
	return &created, nil
}

// refreshOwnerProfile writes back profile fields when the identity provider
// reports different values. Missing claims never erase stored fields.
func refreshOwnerProfile(ctx context.Context, store Storage, owner *domain.Owner, id *Identity, email string) (*domain.Owner, error) {
	changed := false
	if email != "" && owner.Email != email {
		owner.Email = email
		changed = true
	}
	if name := optionalText(id.Name); name != nil && !equalOptional(owner.Name, name) {
		owner.Name = name
		changed = true
	}
	if pic := optionalText(id.Picture); pic != nil && !equalOptional(owner.Picture, pic) {
		owner.Picture = pic
		changed = true
	}
	if changed {
		if err := store.UpsertOwner(ctx, *owner); err != nil {
			return nil, err
		}
	}
	return owner, nil
}

func optionalText(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
