// Package geodata ships the built-in city dataset driving the rotation
// scheduler and city lookups.
package geodata

import (
	_ "embed"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/clubscout/clubscout-cli/internal/search"
)

//go:embed cities.yaml
var citiesYAML []byte

// City is one entry of the built-in dataset. Cities are ordered by
// population, largest first; the rotation scheduler relies on that
// ordering being stable.
type City struct {
	Slug       string  `yaml:"slug" json:"slug"`
	Name       string  `yaml:"name" json:"name"`
	Latitude   float64 `yaml:"latitude" json:"latitude"`
	Longitude  float64 `yaml:"longitude" json:"longitude"`
	Population int     `yaml:"population" json:"population"`
	Region     string  `yaml:"region" json:"region"`
}

var (
	loadOnce   sync.Once
	loadedList []City
	loadErr    error
)

// Cities returns the embedded dataset. The slice is shared; callers must
// not mutate it.
func Cities() ([]City, error) {
	loadOnce.Do(func() {
		var doc struct {
			Cities []City `yaml:"cities"`
		}
		if err := yaml.Unmarshal(citiesYAML, &doc); err != nil {
			loadErr = eris.Wrap(err, "geodata: parse cities.yaml")
			return
		}
		loadedList = doc.Cities
	})
	return loadedList, loadErr
}

// BySlug returns the city with the given slug, or nil.
func BySlug(slug string) (*City, error) {
	cities, err := Cities()
	if err != nil {
		return nil, err
	}
	for i := range cities {
		if cities[i].Slug == slug {
			return &cities[i], nil
		}
	}
	return nil, nil
}

// ByName returns the city matching name after accent and case folding,
// or nil.
func ByName(name string) (*City, error) {
	cities, err := Cities()
	if err != nil {
		return nil, err
	}
	want := search.Normalize(name)
	for i := range cities {
		if search.Normalize(cities[i].Name) == want {
			return &cities[i], nil
		}
	}
	return nil, nil
}

// SearchCities fuzzy-matches term against city names for autocomplete.
func SearchCities(term string, limit int) ([]City, error) {
	cities, err := Cities()
	if err != nil {
		return nil, err
	}
	results := search.Search(cities, term, func(c City) []search.Field {
		return []search.Field{
			{Name: "name", Value: c.Name},
			{Name: "region", Value: c.Region},
		}
	}, limit)
	out := make([]City, 0, len(results))
	for _, r := range results {
		out = append(out, r.Item)
	}
	return out, nil
}
