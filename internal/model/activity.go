package model

import "time"

// Category classifies an activity venue.
type Category string

const (
	CategorySport        Category = "sport"
	CategoryIntellectual Category = "intellectual"
)

// Fallback literals used by source adapters when upstream omits a field.
const (
	UnknownAddress  = "address unknown"
	UnspecifiedCity = "unspecified"
)

// Candidate is a freshly scraped, not-yet-reconciled venue record.
// Candidates are immutable once produced by an adapter: merging always
// returns a new value.
type Candidate struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Address     string   `json:"address"`
	PostalCode  string   `json:"postal_code,omitempty"`
	City        string   `json:"city"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Website     string   `json:"website,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known.
// Candidates without coordinates are still storable but fall back to
// name+city identity matching.
func (c Candidate) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Merge combines c with other, preferring other's non-empty values.
// Both inputs are left untouched.
func (c Candidate) Merge(other Candidate) Candidate {
	merged := c
	merged.Name = coalesce(other.Name, c.Name)
	merged.Subcategory = coalesce(other.Subcategory, c.Subcategory)
	merged.Address = coalesce(other.Address, c.Address)
	merged.PostalCode = coalesce(other.PostalCode, c.PostalCode)
	merged.City = coalesce(other.City, c.City)
	merged.Phone = coalesce(other.Phone, c.Phone)
	merged.Email = coalesce(other.Email, c.Email)
	merged.Website = coalesce(other.Website, c.Website)
	if other.Category != "" {
		merged.Category = other.Category
	}
	if other.Latitude != nil {
		merged.Latitude = other.Latitude
	}
	if other.Longitude != nil {
		merged.Longitude = other.Longitude
	}
	return merged
}

// Activity is a persisted venue with a durable identity. It is a superset
// of Candidate; unset optional fields stay empty/nil in the store.
type Activity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     Category  `json:"category"`
	Subcategory  string    `json:"subcategory,omitempty"`
	Address      string    `json:"address"`
	PostalCode   string    `json:"postal_code,omitempty"`
	City         string    `json:"city"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	Website      string    `json:"website,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (a Activity) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// ApplyCandidate returns the update produced by merging cand into a:
// fields the candidate always carries overwrite, optional fields keep the
// stored value when the candidate's is empty. CreatedAt and identity are
// untouched; the caller refreshes UpdatedAt on write.
func (a Activity) ApplyCandidate(cand Candidate) Activity {
	updated := a
	updated.Name = coalesce(cand.Name, a.Name)
	if cand.Category != "" {
		updated.Category = cand.Category
	}
	updated.Subcategory = coalesce(cand.Subcategory, a.Subcategory)
	updated.Address = coalesce(cand.Address, a.Address)
	updated.PostalCode = coalesce(cand.PostalCode, a.PostalCode)
	updated.City = coalesce(cand.City, a.City)
	updated.Phone = coalesce(cand.Phone, a.Phone)
	updated.Email = coalesce(cand.Email, a.Email)
	updated.Website = coalesce(cand.Website, a.Website)
	if cand.Latitude != nil {
		updated.Latitude = cand.Latitude
	}
	if cand.Longitude != nil {
		updated.Longitude = cand.Longitude
	}
	return updated
}

func coalesce(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

// Float64 returns a pointer to v. Convenience for literal coordinates.
func Float64(v float64) *float64 {
	return &v
}
