// Package pokeapitest serves a small fake PokeAPI for tests.
package pokeapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"pokedex/internal/platform/pokeapi"
)

// Pokemon describes one fake dex entry.
type Pokemon struct {
	ID        int
	Name      string
	Types     []string
	Abilities []string
	Shiny     string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	pokemon  []Pokemon
	failures map[string]int
	gate     chan struct{}

	ListCalls   atomic.Int64
	DetailCalls atomic.Int64
}

// NewServer starts a fake API listing pokemon in the given order.
func NewServer(pokemon ...Pokemon) *Server {
	s := &Server{pokemon: pokemon, failures: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pokemon", s.list)
	mux.HandleFunc("GET /pokemon/{name}", s.detail)
	mux.HandleFunc("GET /pokemon/{name}/", s.detail)
	s.Server = httptest.NewServer(mux)
	return s
}

// Fail makes requests for name answer with status. Use "" for the listing
// and a zero status to clear the failure.
func (s *Server) Fail(name string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, name)
		return
	}
	s.failures[name] = status
}

// SetPokemon replaces the listing.
func (s *Server) SetPokemon(pokemon ...Pokemon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pokemon = pokemon
}

// Hold blocks detail responses until the returned func is called.
func (s *Server) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.ListCalls.Add(1)
	s.mu.Lock()
	status, failing := s.failures[""]
	pokemon := append([]Pokemon(nil), s.pokemon...)
	s.mu.Unlock()
	if failing {
		http.Error(w, "listing failed", status)
		return
	}

	resp := pokeapi.ListResponse{Count: len(pokemon)}
	for _, p := range pokemon {
		resp.Results = append(resp.Results, pokeapi.NamedRef{
			Name: p.Name,
			URL:  fmt.Sprintf("%s/pokemon/%d/", s.URL, p.ID),
		})
	}
	writeJSON(w, resp)
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	s.DetailCalls.Add(1)
	key := r.PathValue("name")

	s.mu.Lock()
	gate := s.gate
	var found *Pokemon
	for i := range s.pokemon {
		if fmt.Sprint(s.pokemon[i].ID) == key || s.pokemon[i].Name == key {
			p := s.pokemon[i]
			found = &p
			break
		}
	}
	status, failing := 0, false
	if found != nil {
		status, failing = s.failures[found.Name]
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if found == nil {
		http.NotFound(w, r)
		return
	}
	if failing {
		http.Error(w, "detail failed", status)
		return
	}

	d := pokeapi.PokemonDetails{ID: found.ID, Name: found.Name}
	for i, t := range found.Types {
		d.Types = append(d.Types, pokeapi.TypeSlot{Slot: i + 1, Type: pokeapi.NamedRef{Name: t}})
	}
	for i, a := range found.Abilities {
		d.Abilities = append(d.Abilities, pokeapi.AbilitySlot{Slot: i + 1, Ability: pokeapi.NamedRef{Name: a}})
	}
	if found.Shiny != "" {
		d.Sprites.Other = map[string]pokeapi.Artwork{
			"official-artwork": {FrontShiny: found.Shiny},
		}
	}
	writeJSON(w, d)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// Starters is the two-entry listing used across tests.
func Starters() []Pokemon {
	return []Pokemon{
		{ID: 1, Name: "bulbasaur", Types: []string{"grass", "poison"}, Abilities: []string{"overgrow", "chlorophyll"}, Shiny: "https://img.example/shiny/1.png"},
		{ID: 4, Name: "charmander", Types: []string{"fire"}, Abilities: []string{"blaze", "solar-power"}, Shiny: "https://img.example/shiny/4.png"},
	}
}
