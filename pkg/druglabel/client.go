// Package druglabel resolves FDA prescribing-label facts from the openFDA
// drug label endpoint. The raw client maps label sections into
// domain.DrugLabelFact; ResilientClient layers a circuit breaker and
// tiered caching on top so the screener keeps working through outages.
package druglabel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/biologic-optimizer/internal/domain"
)

const (
	defaultBaseURL = "https://api.fda.gov/drug/label.json"
	maxResponseLen = 4 << 20
)

// Client fetches drug label facts from the openFDA drug label endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient constructs an openFDA label client from configuration.
func NewClient(cfg *domain.DrugLabelConfig, logger *logrus.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 4
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger,
	}
}

// labelSearchResponse mirrors the subset of the openFDA payload we read.
type labelSearchResponse struct {
	Results []labelResult `json:"results"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type labelResult struct {
	EffectiveTime       string   `json:"effective_time"`
	IndicationsAndUsage []string `json:"indications_and_usage"`
	Contraindications   []string `json:"contraindications"`
	BoxedWarning        []string `json:"boxed_warning"`
	WarningsAndCautions []string `json:"warnings_and_cautions"`
	Warnings            []string `json:"warnings"`
	OpenFDA             struct {
		BrandName   []string `json:"brand_name"`
		GenericName []string `json:"generic_name"`
	} `json:"openfda"`
}

// GetLabelFacts resolves the most recent label for a brand or generic drug
// name. A drug with no published label returns domain.ErrNotFound.
func (c *Client) GetLabelFacts(ctx context.Context, drugName string) (*domain.DrugLabelFact, error) {
	name := strings.TrimSpace(drugName)
	if name == "" {
		return nil, fmt.Errorf("drug name is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	search := fmt.Sprintf(`openfda.brand_name:"%s" openfda.generic_name:"%s"`, name, name)
	params := url.Values{
		"search": {search},
		"limit":  {"1"},
		"sort":   {"effective_time:desc"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build label request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("label request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return nil, fmt.Errorf("failed to read label response: %w", err)
	}

	// openFDA reports an empty result set as a 404 with a NOT_FOUND error
	// payload rather than an empty results array.
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: no label for %q", domain.ErrNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("label service returned status %d", resp.StatusCode)
	}

	var parsed labelSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse label response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Code == "NOT_FOUND" {
		return nil, fmt.Errorf("%w: no label for %q", domain.ErrNotFound, name)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("%w: no label for %q", domain.ErrNotFound, name)
	}

	fact := c.toFact(name, parsed.Results[0])
	c.logger.WithFields(logrus.Fields{
		"drug":     name,
		"brand":    fact.Brand,
		"age_days": fact.AgeDays,
	}).Debug("Resolved drug label facts")

	return fact, nil
}

func (c *Client) toFact(requested string, r labelResult) *domain.DrugLabelFact {
	fact := &domain.DrugLabelFact{
		Brand:             requested,
		FDAIndications:    splitSections(r.IndicationsAndUsage),
		Contraindications: splitSections(r.Contraindications),
		BlackBoxWarnings:  splitSections(r.BoxedWarning),
		Warnings:          splitSections(r.WarningsAndCautions),
	}
	if len(r.OpenFDA.BrandName) > 0 {
		fact.Brand = r.OpenFDA.BrandName[0]
	}
	if len(r.OpenFDA.GenericName) > 0 {
		fact.Generic = strings.ToLower(r.OpenFDA.GenericName[0])
	}
	// Older labels carry the pre-PLR warnings section instead.
	if len(fact.Warnings) == 0 {
		fact.Warnings = splitSections(r.Warnings)
	}
	fact.AgeDays = labelAgeDays(r.EffectiveTime, time.Now().UTC())
	return fact
}

// splitSections trims blank label sections; openFDA pads some labels with
// whitespace-only entries.
func splitSections(sections []string) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// labelAgeDays converts the openFDA effective_time (YYYYMMDD) into an age
// in days. Unparseable or missing dates report zero rather than failing
// the lookup.
func labelAgeDays(effectiveTime string, now time.Time) int {
	effective, err := time.Parse("20060102", strings.TrimSpace(effectiveTime))
	if err != nil {
		return 0
	}
	days := int(now.Sub(effective).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

var _ domain.DrugLabelService = (*Client)(nil)
