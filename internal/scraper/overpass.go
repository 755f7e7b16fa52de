package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/clubscout/clubscout-cli/internal/model"
)

const (
	defaultOverpassURL      = "https://overpass-api.de/api/interpreter"
	defaultOverpassRadiusKm = 20
)

// Overpass queries the OpenStreetMap Overpass API for sport-tagged nodes
// and ways around a center point.
type Overpass struct {
	client   *http.Client
	baseURL  string
	radiusKm float64
}

// OverpassOption configures the Overpass adapter.
type OverpassOption func(*Overpass)

// WithOverpassBaseURL overrides the Overpass endpoint (tests, mirrors).
func WithOverpassBaseURL(u string) OverpassOption {
	return func(o *Overpass) { o.baseURL = u }
}

// WithOverpassHTTPClient sets a custom HTTP client.
func WithOverpassHTTPClient(c *http.Client) OverpassOption {
	return func(o *Overpass) { o.client = c }
}

// WithOverpassRadiusKm sets the default search radius used when the query
// carries none.
func WithOverpassRadiusKm(km float64) OverpassOption {
	return func(o *Overpass) { o.radiusKm = km }
}

// NewOverpass creates the Overpass source adapter.
func NewOverpass(opts ...OverpassOption) *Overpass {
	o := &Overpass{
		client:   defaultHTTPClient(),
		baseURL:  defaultOverpassURL,
		radiusKm: defaultOverpassRadiusKm,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Overpass) Name() string { return "overpass" }

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	Lat    *floatString      `json:"lat"`
	Lon    *floatString      `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat floatString `json:"lat"`
	Lon floatString `json:"lon"`
}

// Fetch runs a single tag query around the query center. Elements without
// a name or coordinates are skipped, not errors.
func (o *Overpass) Fetch(ctx context.Context, q Query) ([]model.Candidate, error) {
	if q.Center == nil {
		zap.L().Warn("overpass: no center coordinates, skipping")
		return nil, nil
	}

	radiusKm := q.RadiusKm
	if radiusKm <= 0 {
		radiusKm = o.radiusKm
	}
	query := o.buildQuery(q.Center.Latitude, q.Center.Longitude, radiusKm)

	var parsed overpassResponse
	err := doJSON(ctx, o.client, o.Name(), func(ctx context.Context) (*http.Request, error) {
		form := url.Values{"data": {query}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &parsed)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.Candidate, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		c, ok := o.mapElement(el, q)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}

	zap.L().Info("overpass: scraped candidates",
		zap.String("city", q.CityOrDefault()),
		zap.Int("count", len(candidates)),
	)
	return candidates, nil
}

func (o *Overpass) buildQuery(lat, lon, radiusKm float64) string {
	radiusM := int(radiusKm * 1000)
	around := fmt.Sprintf("(around:%d,%f,%f)", radiusM, lat, lon)
	return fmt.Sprintf(`[out:json][timeout:25];
(
  node["sport"]%[1]s;
  way["sport"]%[1]s;
  node["leisure"~"sports_centre|fitness_centre|fitness_station"]%[1]s;
  way["leisure"~"sports_centre|fitness_centre"]%[1]s;
  node["club"~"sport"]%[1]s;
);
out center;
>;
out skel qt;`, around)
}

func (o *Overpass) mapElement(el overpassElement, q Query) (model.Candidate, bool) {
	name := el.Tags["name"]
	if name == "" {
		return model.Candidate{}, false
	}

	lat, lon := el.Lat, el.Lon
	if el.Center != nil {
		lat, lon = &el.Center.Lat, &el.Center.Lon
	}
	if lat == nil || lon == nil {
		return model.Candidate{}, false
	}

	address := model.UnknownAddress
	if street := el.Tags["addr:street"]; street != "" {
		address = strings.TrimSpace(el.Tags["addr:housenumber"] + " " + street)
	}

	city := el.Tags["addr:city"]
	if city == "" {
		city = q.CityOrDefault()
	}

	subcategory := el.Tags["sport"]
	if subcategory == "" {
		subcategory = el.Tags["leisure"]
	}
	if subcategory == "" {
		subcategory = "other"
	}

	website := el.Tags["website"]
	if website == "" {
		website = el.Tags["contact:website"]
	}

	return model.Candidate{
		Name:        name,
		Category:    model.CategorySport,
		Subcategory: subcategory,
		Address:     address,
		PostalCode:  el.Tags["addr:postcode"],
		City:        city,
		Phone:       el.Tags["phone"],
		Email:       el.Tags["email"],
		Website:     website,
		Latitude:    model.Float64(float64(*lat)),
		Longitude:   model.Float64(float64(*lon)),
		Source:      o.Name(),
	}, true
}
