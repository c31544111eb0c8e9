package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

//go:embed data/countries_subdivisions.json
var countriesJSON []byte

// countryData maps ISO 3166-1 alpha-3 country codes to the names of
// their ISO 3166-2 subdivisions.
type countryData map[string][]string

// loadCountries reads the country/subdivision dataset. When dataPath is
// non-empty the file countries/countries_subdivisions.json underneath it
// takes precedence over the compiled-in copy, which lets deployments ship
// an updated dataset without a new binary.
func loadCountries(dataPath string) (countryData, error) {
	raw := countriesJSON
	if dataPath != "" {
		path := filepath.Join(dataPath, "countries", "countries_subdivisions.json")
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading country dataset %s: %w", path, err)
		}
		raw = b
	}

	var data countryData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing country dataset: %w", err)
	}
	return data, nil
}

// HasCountry reports whether code is a known alpha-3 country code.
func (c countryData) HasCountry(code string) bool {
	_, ok := c[code]
	return ok
}

// HasSubdivision reports whether name is a subdivision of any known country.
func (c countryData) HasSubdivision(name string) bool {
	for _, subs := range c {
		for _, s := range subs {
			if s == name {
				return true
			}
		}
	}
	return false
}

// SubdivisionsFor returns the subdivision names for a country code.
func (c countryData) SubdivisionsFor(code string) []string {
	out := slices.Clone(c[code])
	slices.Sort(out)
	return out
}
