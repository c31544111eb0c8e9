package manifest

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCountriesEmbedded(t *testing.T) {
	countries, err := loadCountries("")
	require.NoError(t, err)

	assert.True(t, countries.HasCountry("GBR"))
	assert.True(t, countries.HasCountry("USA"))
	assert.False(t, countries.HasCountry("ENG"))

	assert.True(t, countries.HasSubdivision("England"))
	assert.False(t, countries.HasSubdivision("Narnia"))

	subs := countries.SubdivisionsFor("GBR")
	assert.Contains(t, subs, "England")
	assert.True(t, slices.IsSorted(subs))
}

func TestLoadCountriesOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "countries"), 0o755))
	path := filepath.Join(dir, "countries", "countries_subdivisions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"XXA":["Testshire"]}`), 0o644))

	countries, err := loadCountries(dir)
	require.NoError(t, err)

	// The override replaces the compiled-in dataset entirely.
	assert.True(t, countries.HasCountry("XXA"))
	assert.False(t, countries.HasCountry("GBR"))
	assert.Equal(t, []string{"Testshire"}, countries.SubdivisionsFor("XXA"))
}

func TestLoadCountriesMissingOverride(t *testing.T) {
	_, err := loadCountries(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading country dataset")
}
