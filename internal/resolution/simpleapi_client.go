package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

const (
	simpleAPIMaxRetries = 3
	simpleAPIAccept     = "application/vnd.pypi.simple.v1+json"
)

// fetchSimpleAPIProject fetches and decodes a project's Simple API page,
// retrying transient failures with exponential backoff exactly like the
// legacy PyPI JSON client did.
func fetchSimpleAPIProject(ctx context.Context, client *http.Client, logger *slog.Logger, baseURL, project string, headers map[string]string) (*SimpleAPIProjectDetail, error) {
	url := fmt.Sprintf("%s/%s/", baseURL, project)

	var lastErr error

	for attempt := range simpleAPIMaxRetries {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond

			logger.Debug("retrying simple api request",
				slog.String("project", project), slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("resolution: fetching %s: %w", project, ctx.Err())
			case <-time.After(backoff):
			}
		}

		detail, err := doSimpleAPIRequest(ctx, client, url, headers)
		if err == nil {
			return detail, nil
		}

		var re *retryableError
		if !errors.As(err, &re) {
			return nil, fmt.Errorf("resolution: fetching %s: %w", project, err)
		}

		lastErr = err
	}

	return nil, fmt.Errorf("resolution: fetching %s after %d attempts: %w", project, simpleAPIMaxRetries, lastErr)
}

func doSimpleAPIRequest(ctx context.Context, client *http.Client, url string, headers map[string]string) (*SimpleAPIProjectDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}

	if len(headers) == 0 {
		headers = map[string]string{"Accept": simpleAPIAccept}
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("requesting %s: %w", url, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("project not found at %s", url)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &retryableError{err: fmt.Errorf("server error %d from %s", resp.StatusCode, url)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("reading response from %s: %w", url, err)}
	}

	var detail SimpleAPIProjectDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", url, err)
	}

	return &detail, nil
}
