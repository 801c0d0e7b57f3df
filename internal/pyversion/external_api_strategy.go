package pyversion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ExternalAPIStrategy discovers currently-supported Python versions from a
// JSON API (endoflife.date's Python product by default), the freshest of
// the remote discovery strategies. The default strategy chains try it
// after LocalInterpreterStrategy.
type ExternalAPIStrategy struct {
	URL        string
	httpClient *http.Client
}

var _ DiscoveryStrategy = (*ExternalAPIStrategy)(nil)

// NewExternalAPIStrategy builds an ExternalAPIStrategy against url, or the
// default endoflife.date endpoint if url is empty.
func NewExternalAPIStrategy(url string, client *http.Client) *ExternalAPIStrategy {
	if url == "" {
		url = "https://endoflife.date/api/python.json"
	}

	if client == nil {
		client = &http.Client{}
	}

	return &ExternalAPIStrategy{URL: url, httpClient: client}
}

func (s *ExternalAPIStrategy) Name() string { return "external-api" }

type externalAPICycle struct {
	Cycle   string `json:"cycle"`
	Latest  string `json:"latest"`
	EOL     any    `json:"eol"`
}

func (s *ExternalAPIStrategy) Discover(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", s.URL, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", s.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.URL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", s.URL, err)
	}

	var cycles []externalAPICycle
	if err := json.Unmarshal(body, &cycles); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", s.URL, err)
	}

	versions := make([]string, 0, len(cycles))

	for _, c := range cycles {
		if c.Latest != "" {
			versions = append(versions, c.Latest)
		} else if c.Cycle != "" {
			versions = append(versions, c.Cycle)
		}
	}

	return versions, nil
}
