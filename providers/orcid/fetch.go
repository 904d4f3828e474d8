package orcid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"orquidea/config"
)

var orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// ValidID reports whether s has the shape of an ORCID iD.
func ValidID(s string) bool {
	return orcidPattern.MatchString(s)
}

// StatusError is returned for non-2xx responses from the registry.
type StatusError struct {
	OrcidID    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("orcid %s: unexpected status %d", e.OrcidID, e.StatusCode)
}

// UserAgent identifies this service to the ORCID API.
const UserAgent = "orquidea-monitor/1.0 (+https://orcid.org)"

// userAgentTransport sets the User-Agent header on every request.
type userAgentTransport struct {
	Transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	return t.Transport.RoundTrip(req)
}

// Fetcher talks to the ORCID public API.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewFetcher creates a Fetcher against cfg.ORCIDBaseURL.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	timeout := cfg.ORCIDTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &userAgentTransport{Transport: http.DefaultTransport},
		},
		baseURL: strings.TrimRight(cfg.ORCIDBaseURL, "/"),
		timeout: timeout,
	}
}

// Name returns the provider name.
func (f *Fetcher) Name() string {
	return "orcid"
}

// FetchRecord loads the full public record of a researcher.
func (f *Fetcher) FetchRecord(ctx context.Context, orcidID string) (*Record, error) {
	if orcidID == "" {
		return nil, fmt.Errorf("orcid id is required")
	}
	endpoint := fmt.Sprintf("%s/%s/record", f.baseURL, url.PathEscape(orcidID))

	var record Record
	if err := f.getJSON(ctx, orcidID, endpoint, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// FetchProfile returns the researcher's display name and all work summaries.
func (f *Fetcher) FetchProfile(ctx context.Context, orcidID string) (*Profile, error) {
	record, err := f.FetchRecord(ctx, orcidID)
	if err != nil {
		return nil, err
	}
	profile := &Profile{Name: record.DisplayName(), Works: record.Works()}
	f.Logger.Debug("Fetched ORCID profile", zap.String("orcid", orcidID), zap.Int("works", len(profile.Works)))
	return profile, nil
}

// Search runs an expanded search for researchers.
func (f *Fetcher) Search(ctx context.Context, query string, rows int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if rows > 0 {
		params.Set("rows", strconv.Itoa(rows))
	}
	endpoint := fmt.Sprintf("%s/expanded-search?%s", f.baseURL, params.Encode())

	var result SearchResult
	if err := f.getJSON(ctx, "search", endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (f *Fetcher) getJSON(ctx context.Context, subject, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	log := f.Logger.With(zap.String("subject", subject))
	log.Debug("Calling ORCID API", zap.String("url", endpoint))

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("orcid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		log.Warn("ORCID API returned error status", zap.Int("status", resp.StatusCode))
		return &StatusError{OrcidID: subject, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode orcid response: %w", err)
	}
	return nil
}
