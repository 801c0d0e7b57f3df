package pyversion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// HTMLPageStrategy scrapes the python.org downloads page for release
// version strings, used when the structured external API is unreachable
// but a plain HTTP fetch still succeeds.
type HTMLPageStrategy struct {
	URL        string
	httpClient *http.Client
}

var _ DiscoveryStrategy = (*HTMLPageStrategy)(nil)

// NewHTMLPageStrategy builds an HTMLPageStrategy against url, or the
// default python.org downloads page if url is empty.
func NewHTMLPageStrategy(url string, client *http.Client) *HTMLPageStrategy {
	if url == "" {
		url = "https://www.python.org/downloads/"
	}

	if client == nil {
		client = &http.Client{}
	}

	return &HTMLPageStrategy{URL: url, httpClient: client}
}

func (s *HTMLPageStrategy) Name() string { return "html-page" }

var releaseVersionRE = regexp.MustCompile(`Python (3\.\d+\.\d+)`)

func (s *HTMLPageStrategy) Discover(ctx context.Context) ([]string, error) {
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

	matches := releaseVersionRE.FindAllStringSubmatch(string(body), -1)

	seen := make(map[string]bool)

	var versions []string

	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true

			versions = append(versions, m[1])
		}
	}

	return versions, nil
}
