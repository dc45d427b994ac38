package pokemon

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pokedex/internal/platform/pokeapi"
)

type PokeAPIClient interface {
	ListPokemon(ctx context.Context, limit, offset int) (*pokeapi.ListResponse, error)
	GetPokemon(ctx context.Context, detailURL string) (*pokeapi.PokemonDetails, error)
}

type Loader struct {
	api            PokeAPIClient
	maxConcurrency int
}

// NewLoader returns a loader. maxConcurrency <= 0 fires every detail fetch at once.
func NewLoader(api PokeAPIClient, maxConcurrency int) *Loader {
	return &Loader{api: api, maxConcurrency: maxConcurrency}
}

// Load fetches the listing page and every detail resource, tagging each entry
// with identity. Any failed fetch fails the whole load and no entries are returned.
func (l *Loader) Load(ctx context.Context, identity string) ([]Entry, error) {
	list, err := l.api.ListPokemon(ctx, PageSize, PageOffset)
	if err != nil {
		return nil, fmt.Errorf("list pokemon: %w", err)
	}

	entries := make([]Entry, len(list.Results))

	g, gctx := errgroup.WithContext(ctx)
	if l.maxConcurrency > 0 {
		g.SetLimit(l.maxConcurrency)
	}
	for i, ref := range list.Results {
		g.Go(func() error {
			details, err := l.api.GetPokemon(gctx, ref.URL)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", ref.Name, err)
			}
			entry, err := toEntry(ref, details, identity)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadEntry fetches a single pokemon by name.
func (l *Loader) LoadEntry(ctx context.Context, name, identity string) (Entry, error) {
	details, err := l.api.GetPokemon(ctx, name)
	if err != nil {
		return Entry{}, fmt.Errorf("fetch %s: %w", name, err)
	}
	return toEntry(pokeapi.NamedRef{Name: details.Name}, details, identity)
}

func toEntry(ref pokeapi.NamedRef, d *pokeapi.PokemonDetails, identity string) (Entry, error) {
	types := make([]string, 0, len(d.Types))
	for _, t := range d.Types {
		types = append(types, t.Type.Name)
	}
	if len(types) == 0 {
		return Entry{}, fmt.Errorf("%s: %w", ref.Name, ErrNoTypes)
	}

	abilities := make([]string, 0, len(d.Abilities))
	for _, a := range d.Abilities {
		abilities = append(abilities, a.Ability.Name)
	}

	name := ref.Name
	if name == "" {
		name = d.Name
	}

	return Entry{
		ID:        d.ID,
		Name:      name,
		Types:     types,
		Abilities: abilities,
		Image:     d.OfficialArtwork(),
		Owner:     identity,
	}, nil
}
