package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clubscout/clubscout-cli/internal/model"
)

const defaultSerpURL = "https://serpapi.com/search.json"

// serpQuery pairs a search phrase with the category it implies. The
// category mapping lives here so the pipeline core never infers anything
// from query strings.
type serpQuery struct {
	phrase      string
	subcategory string
	category    model.Category
}

var serpQueries = []serpQuery{
	{"club echecs", "echecs", model.CategoryIntellectual},
	{"club football", "football", model.CategorySport},
	{"club basketball", "basketball", model.CategorySport},
	{"club tennis", "tennis", model.CategorySport},
	{"club rugby", "rugby", model.CategorySport},
	{"salle escalade", "escalade", model.CategorySport},
	{"piscine", "natation", model.CategorySport},
	{"club natation", "natation", model.CategorySport},
	{"club yoga", "yoga", model.CategorySport},
	{"club danse", "danse", model.CategorySport},
	{"dojo", "arts_martiaux", model.CategorySport},
	{"salle musculation", "musculation", model.CategorySport},
	{"salle fitness", "fitness", model.CategorySport},
	{"club athletisme", "athletisme", model.CategorySport},
	{"club cyclisme", "cyclisme", model.CategorySport},
	{"club volley", "volleyball", model.CategorySport},
	{"club handball", "handball", model.CategorySport},
	{"gymnase", "gymnase", model.CategorySport},
	{"stade", "stade", model.CategorySport},
	{"club badminton", "badminton", model.CategorySport},
}

var postalCodeRe = regexp.MustCompile(`\b(\d{5})\b`)

// Serp queries a search-engine-results API (maps engine), one request per
// category phrase.
type Serp struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// SerpOption configures the Serp adapter.
type SerpOption func(*Serp)

// WithSerpBaseURL overrides the API endpoint (tests).
func WithSerpBaseURL(u string) SerpOption {
	return func(s *Serp) { s.baseURL = u }
}

// WithSerpHTTPClient sets a custom HTTP client.
func WithSerpHTTPClient(c *http.Client) SerpOption {
	return func(s *Serp) { s.client = c }
}

// WithSerpPacing sets the delay between successive phrase queries.
func WithSerpPacing(d time.Duration) SerpOption {
	return func(s *Serp) { s.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// NewSerp creates the search-results source adapter. An empty API key
// makes Fetch a no-op that contributes nothing.
func NewSerp(apiKey string, opts ...SerpOption) *Serp {
	s := &Serp{
		client:  defaultHTTPClient(),
		baseURL: defaultSerpURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Serp) Name() string { return "serp" }

type serpResponse struct {
	Error        string      `json:"error"`
	LocalResults []serpEntry `json:"local_results"`
}

type serpEntry struct {
	Title          string `json:"title"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	Website        string `json:"website"`
	GPSCoordinates *struct {
		Latitude  floatString `json:"latitude"`
		Longitude floatString `json:"longitude"`
	} `json:"gps_coordinates"`
}

// Fetch issues one maps search per category phrase, scoped to the query
// center when coordinates are known. Entries without a title or
// coordinates are skipped.
func (s *Serp) Fetch(ctx context.Context, q Query) ([]model.Candidate, error) {
	if s.apiKey == "" {
		zap.L().Warn("serp: api key not configured, skipping")
		return nil, nil
	}

	city := q.CityOrDefault()
	var candidates []model.Candidate

	for _, sq := range serpQueries {
		if err := s.limiter.Wait(ctx); err != nil {
			return candidates, err
		}

		phrase := sq.phrase + " " + city
		var parsed serpResponse
		err := doJSON(ctx, s.client, s.Name(), func(ctx context.Context) (*http.Request, error) {
			params := url.Values{}
			params.Set("engine", "google_maps")
			params.Set("q", phrase)
			params.Set("type", "search")
			if q.Center != nil {
				radiusM := int(q.RadiusKm * 1000)
				if radiusM <= 0 {
					radiusM = 10_000
				}
				params.Set("ll", fmt.Sprintf("@%f,%f,%dm", q.Center.Latitude, q.Center.Longitude, radiusM))
			}
			params.Set("api_key", s.apiKey)
			return http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
		}, &parsed)
		if err != nil {
			zap.L().Warn("serp: phrase query failed", zap.String("phrase", phrase), zap.Error(err))
			continue
		}
		if parsed.Error != "" {
			zap.L().Warn("serp: api error", zap.String("phrase", phrase), zap.String("error", parsed.Error))
			continue
		}

		for _, entry := range parsed.LocalResults {
			if entry.Title == "" || entry.GPSCoordinates == nil {
				continue
			}
			c := model.Candidate{
				Name:        entry.Title,
				Category:    sq.category,
				Subcategory: sq.subcategory,
				Address:     model.UnknownAddress,
				PostalCode:  extractPostalCode(entry.Address),
				City:        city,
				Phone:       entry.Phone,
				Website:     entry.Website,
				Latitude:    model.Float64(float64(entry.GPSCoordinates.Latitude)),
				Longitude:   model.Float64(float64(entry.GPSCoordinates.Longitude)),
				Source:      s.Name(),
			}
			if entry.Address != "" {
				c.Address = entry.Address
			}
			if q.City == "" {
				if extracted := extractCity(entry.Address); extracted != "" {
					c.City = extracted
				}
			}
			candidates = append(candidates, c)
		}
	}

	zap.L().Info("serp: scraped candidates",
		zap.String("city", city),
		zap.Int("count", len(candidates)),
	)
	return candidates, nil
}

func extractPostalCode(address string) string {
	m := postalCodeRe.FindStringSubmatch(address)
	if m == nil {
		return ""
	}
	return m[1]
}

// extractCity takes the last comma-separated part of an address, minus
// any postal code.
func extractCity(address string) string {
	if address == "" {
		return ""
	}
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return ""
	}
	cityPart := strings.TrimSpace(parts[len(parts)-1])
	withoutPostal := strings.TrimSpace(postalCodeRe.ReplaceAllString(cityPart, ""))
	if withoutPostal != "" {
		return withoutPostal
	}
	return cityPart
}
