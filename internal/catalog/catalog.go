// Package catalog fetches the species listing (dex number and name for
// every base creature) from the remote catalog service, once at
// startup, and caches it in local storage.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dexlink.app/internal/ids"
	"dexlink.app/internal/storage"
)

type Species struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type page struct {
	Count   int       `json:"count"`
	Next    string    `json:"next"`
	Results []Species `json:"results"`
}

const cacheKey = "catalog/species"

// nonBaseFormFloor: ids at or above this are alternate forms, excluded
// from the dex.
const nonBaseFormFloor = 10000

const pageLimit = 200

// Fetch walks the paginated listing until exhausted. Non-base forms and
// malformed entries are dropped.
func Fetch(ctx context.Context, client *http.Client, baseURL string) ([]Species, error) {
	if client == nil {
		client = http.DefaultClient
	}
	next := fmt.Sprintf("%s?limit=%d&offset=0", strings.TrimRight(baseURL, "/"), pageLimit)

	var out []Species
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("catalog fetch: status %d", resp.StatusCode)
		}
		var p page
		err = json.NewDecoder(resp.Body).Decode(&p)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("catalog fetch: %w", err)
		}
		for _, sp := range p.Results {
			if sp.ID < 1 || sp.ID >= nonBaseFormFloor || sp.Name == "" {
				continue
			}
			out = append(out, sp)
		}
		if p.Next == next { // defend against a server that never advances
			return nil, fmt.Errorf("catalog fetch: pagination loop at %s", next)
		}
		next = p.Next
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("catalog fetch: empty listing")
	}
	return out, nil
}

// LoadOrFetch serves the cached listing when present, fetching and
// caching otherwise. A corrupt cache entry reads as absent and is
// refetched.
func LoadOrFetch(ctx context.Context, kv *storage.KV, client *http.Client, baseURL string) ([]Species, error) {
	if kv != nil {
		var cached []Species
		if ok, err := kv.GetJSON(cacheKey, &cached); err == nil && ok && len(cached) > 0 {
			return cached, nil
		}
	}
	list, err := Fetch(ctx, client, baseURL)
	if err != nil {
		return nil, err
	}
	if kv != nil {
		_ = kv.SetJSON(cacheKey, list)
	}
	return list, nil
}

// ByName indexes a listing by lowercased name for guess resolution.
func ByName(list []Species) map[string]int {
	m := make(map[string]int, len(list))
	for _, sp := range list {
		m[strings.ToLower(sp.Name)] = sp.ID
	}
	return m
}

// ByID indexes a listing by dex number.
func ByID(list []Species) map[int]Species {
	m := make(map[int]Species, len(list))
	for _, sp := range list {
		if sp.ID >= 1 && sp.ID <= ids.MaxDex {
			m[sp.ID] = sp
		}
	}
	return m
}
