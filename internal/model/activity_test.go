package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidate_Merge_PrefersNonEmpty(t *testing.T) {
	a := Candidate{
		Name:     "Club A",
		Category: CategorySport,
		City:     "Toulouse",
		Website:  "http://a",
	}
	b := Candidate{
		Name:     "Club A",
		Category: CategorySport,
		City:     "Toulouse",
		Phone:    "0561000000",
	}

	merged := a.Merge(b)
	assert.Equal(t, "0561000000", merged.Phone)
	assert.Equal(t, "http://a", merged.Website)

	// Inputs are untouched.
	assert.Empty(t, a.Phone)
	assert.Empty(t, b.Website)
}

func TestCandidate_Merge_CoordinatesLastNonNilWins(t *testing.T) {
	a := Candidate{Name: "Club A", Latitude: Float64(43.60), Longitude: Float64(1.44)}
	b := Candidate{Name: "Club A"}

	merged := a.Merge(b)
	assert.True(t, merged.HasCoordinates())
	assert.Equal(t, 43.60, *merged.Latitude)

	merged = b.Merge(a)
	assert.True(t, merged.HasCoordinates())
}

func TestCandidate_HasCoordinates(t *testing.T) {
	assert.False(t, Candidate{}.HasCoordinates())
	assert.False(t, Candidate{Latitude: Float64(43.6)}.HasCoordinates())
	assert.True(t, Candidate{Latitude: Float64(43.6), Longitude: Float64(1.44)}.HasCoordinates())
}

func TestActivity_ApplyCandidate(t *testing.T) {
	stored := Activity{
		ID:       "abc",
		Name:     "Club A",
		Category: CategorySport,
		Address:  "old street",
		City:     "Toulouse",
		Phone:    "0561000000",
	}
	cand := Candidate{
		Name:        "Club A",
		Category:    CategorySport,
		Subcategory: "tennis",
		Address:     "12 rue des Sports",
		City:        "Toulouse",
		Website:     "http://club-a.fr",
	}

	updated := stored.ApplyCandidate(cand)
	assert.Equal(t, "abc", updated.ID)
	assert.Equal(t, "12 rue des Sports", updated.Address)
	assert.Equal(t, "tennis", updated.Subcategory)
	assert.Equal(t, "http://club-a.fr", updated.Website)
	// Candidate has no phone: the stored value survives.
	assert.Equal(t, "0561000000", updated.Phone)
}

func TestActivity_ApplyCandidate_Idempotent(t *testing.T) {
	cand := Candidate{
		Name:     "Club B",
		Category: CategoryIntellectual,
		Address:  "3 place du Capitole",
		City:     "Toulouse",
		Phone:    "0561111111",
	}
	stored := Activity{ID: "x", Name: "Club B", Category: CategoryIntellectual}

	once := stored.ApplyCandidate(cand)
	twice := once.ApplyCandidate(cand)
	assert.Equal(t, once, twice)
}
