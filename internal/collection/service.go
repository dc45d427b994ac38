package collection

import (
	"context"
	"fmt"
	"log"
	"time"

	"pokedex/internal/notify"
	"pokedex/internal/pokemon"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// IsOwned reports whether user has at least one record named name.
func (s *Service) IsOwned(ctx context.Context, name, user string) (bool, error) {
	if name == "" || user == "" {
		return false, nil
	}
	records, err := s.repo.FindByNameAndUser(ctx, name, user)
	if err != nil {
		log.Printf("collection query failed name=%s user=%s error=%v", name, user, err)
		notify.Failure(ctx, "Could not check your collection")
		return false, fmt.Errorf("find %s: %w", name, err)
	}
	return len(records) > 0, nil
}

func (s *Service) Add(ctx context.Context, user string, entry pokemon.Entry) (*Record, error) {
	rec := FromEntry(entry, user)
	if err := rec.validate(); err != nil {
		return nil, err
	}
	rec.CreatedAt = s.now().UTC()

	if err := s.repo.Insert(ctx, &rec); err != nil {
		log.Printf("collection add failed name=%s user=%s error=%v", rec.Name, user, err)
		notify.Failure(ctx, fmt.Sprintf("Could not add %s to your collection", rec.Name))
		return nil, fmt.Errorf("add %s: %w", rec.Name, err)
	}

	notify.Success(ctx, fmt.Sprintf("%s added to your collection", rec.Name))
	return &rec, nil
}

// Remove deletes the record named name owned by user.
func (s *Service) Remove(ctx context.Context, name, user string) error {
	if name == "" || user == "" {
		return ErrInvalidRecord
	}

	records, err := s.repo.FindByNameAndUser(ctx, name, user)
	if err == nil && len(records) == 0 {
		err = ErrNotFound
	}
	if err == nil {
		err = s.repo.Delete(ctx, records[0].ID)
	}
	if err != nil {
		log.Printf("collection remove failed name=%s user=%s error=%v", name, user, err)
		notify.Failure(ctx, fmt.Sprintf("Could not remove %s from your collection", name))
		return fmt.Errorf("remove %s: %w", name, err)
	}

	notify.Success(ctx, fmt.Sprintf("%s removed from your collection", name))
	return nil
}

func (s *Service) List(ctx context.Context, user string) ([]Record, error) {
	if user == "" {
		return []Record{}, nil
	}
	records, err := s.repo.ListByUser(ctx, user)
	if err != nil {
		log.Printf("collection list failed user=%s error=%v", user, err)
		notify.Failure(ctx, "Could not load your collection")
		return nil, fmt.Errorf("list collection: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
