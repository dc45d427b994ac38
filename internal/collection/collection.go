package collection

import (
	"context"
	"errors"
	"time"

	"pokedex/internal/pokemon"
)

var (
	ErrNotFound      = errors.New("collection record not found")
	ErrAlreadyOwned  = errors.New("pokemon already in collection")
	ErrInvalidRecord = errors.New("invalid collection record")
)

// Record is one pokemon saved by one user. Catalog fields are copied at add
// time so the collection renders without the catalog.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	User      string    `json:"user"`
	Types     []string  `json:"types"`
	Abilities []string  `json:"abilities"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

//go:generate mockgen -source=collection.go -destination=mock_repository.go -package=collection

// Repository persists records. Implementations enforce uniqueness of
// (name, user) and report a conflicting Insert as ErrAlreadyOwned.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	FindByNameAndUser(ctx context.Context, name, user string) ([]Record, error)
	ListByUser(ctx context.Context, user string) ([]Record, error)
	Delete(ctx context.Context, id string) error
}

// FromEntry builds the record saved when user adds entry to their collection.
func FromEntry(entry pokemon.Entry, user string) Record {
	return Record{
		Name:      entry.Name,
		User:      user,
		Types:     append([]string(nil), entry.Types...),
		Abilities: append([]string(nil), entry.Abilities...),
		Image:     entry.Image,
	}
}

func (r Record) validate() error {
	if r.Name == "" || r.User == "" || len(r.Types) == 0 {
		return ErrInvalidRecord
	}
	return nil
}
