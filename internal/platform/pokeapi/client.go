package pokeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://pokeapi.co/api/v2"

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient builds a client for the PokeAPI. rps <= 0 disables throttling.
func NewClient(baseURL, userAgent string, rps int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Every(time.Second / time.Duration(rps))
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent: userAgent,
		baseURL:   strings.TrimRight(baseURL, "/"),
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// WithHTTPClient swaps the underlying transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ListResponse matches /pokemon?limit=&offset=
type ListResponse struct {
	Count   int        `json:"count"`
	Next    string     `json:"next"`
	Results []NamedRef `json:"results"`
}

type NamedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type TypeSlot struct {
	Slot int      `json:"slot"`
	Type NamedRef `json:"type"`
}

type AbilitySlot struct {
	Slot     int      `json:"slot"`
	IsHidden bool     `json:"is_hidden"`
	Ability  NamedRef `json:"ability"`
}

type Artwork struct {
	FrontDefault string `json:"front_default"`
	FrontShiny   string `json:"front_shiny"`
}

type Sprites struct {
	FrontDefault string             `json:"front_default"`
	Other        map[string]Artwork `json:"other"`
}

// PokemonDetails matches /pokemon/{name}
type PokemonDetails struct {
	ID        int           `json:"id"`
	Name      string        `json:"name"`
	Types     []TypeSlot    `json:"types"`
	Abilities []AbilitySlot `json:"abilities"`
	Sprites   Sprites       `json:"sprites"`
}

// OfficialArtwork returns the shiny official artwork URI, or "" when absent.
func (d *PokemonDetails) OfficialArtwork() string {
	if d.Sprites.Other == nil {
		return ""
	}
	return d.Sprites.Other["official-artwork"].FrontShiny
}

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

func (c *Client) ListPokemon(ctx context.Context, limit, offset int) (*ListResponse, error) {
	u := fmt.Sprintf("%s/pokemon?limit=%d&offset=%d", c.baseURL, limit, offset)

	var res ListResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPokemon fetches a detail resource. detailURL is normally taken verbatim
// from a listing result; a bare name is resolved against the base URL.
func (c *Client) GetPokemon(ctx context.Context, detailURL string) (*PokemonDetails, error) {
	u := detailURL
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = fmt.Sprintf("%s/pokemon/%s", c.baseURL, strings.Trim(detailURL, "/"))
	}

	var res PokemonDetails
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, url string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
