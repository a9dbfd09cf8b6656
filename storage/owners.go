package storage

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskflow-api/domain"
)

// Owners share a single partition; the row key is the owner id.
const ownerPartition = "owner"

type ownerEntity struct {
	aztables.Entity
	Email   string `json:"Email"`
	Name    string `json:"Name"`
	Picture string `json:"Picture"`
}

func encodeOwner(o domain.Owner) ownerEntity {
	ent := ownerEntity{
		Entity: aztables.Entity{
			PartitionKey: ownerPartition,
			RowKey:       o.ID,
		},
		Email: o.Email,
	}
	if o.Name != nil {
		ent.Name = *o.Name
	}
	if o.Picture != nil {
		ent.Picture = *o.Picture
	}
	return ent
}

func decodeOwner(ent ownerEntity) domain.Owner {
	o := domain.Owner{ID: ent.RowKey, Email: ent.Email}
	if ent.Name != "" {
		name := ent.Name
		o.Name = &name
	}
	if ent.Picture != "" {
		picture := ent.Picture
		o.Picture = &picture
	}
	return o
}

// GetOwner fetches an owner by its stable id, returning (nil, nil) when the
// owner does not exist yet.
func (s *Storage) GetOwner(ctx context.Context, id string) (*domain.Owner, error) {
	resp, err := s.ownerTable.GetEntity(ctx, ownerPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent ownerEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	o := decodeOwner(ent)
	return &o, nil
}

// FindOwnerByEmail looks up an owner by email. Emails are unique, so the
// first match wins.
func (s *Storage) FindOwnerByEmail(ctx context.Context, email string) (*domain.Owner, error) {
	filter := "PartitionKey eq '" + ownerPartition + "' and Email eq '" + escapeOData(email) + "'"
	pager := s.ownerTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent ownerEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			o := decodeOwner(ent)
			return &o, nil
		}
	}
	return nil, nil
}

// UpsertOwner creates or replaces the owner row.
func (s *Storage) UpsertOwner(ctx context.Context, o domain.Owner) error {
	payload, err := json.Marshal(encodeOwner(o))
	if err != nil {
		return err
	}
	opts := &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}
	_, err = s.ownerTable.UpsertEntity(ctx, payload, opts)
	return err
}

// ListOwners returns every known owner, used by the digest fan-out.
func (s *Storage) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	filter := "PartitionKey eq '" + ownerPartition + "'"
	pager := s.ownerTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	owners := []domain.Owner{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent ownerEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			owners = append(owners, decodeOwner(ent))
		}
	}
	return owners, nil
}
