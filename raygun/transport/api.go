package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// APIClient reads applications and crash reports from the Raygun v3 API.
type APIClient struct {
	base string
	http *resty.Client
}

// NewAPIClient creates a client authenticating with a personal access
// token. An empty base selects DefaultAPIBase.
func NewAPIClient(token, base string) (*APIClient, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: use --token flag or set %s environment variable", ErrMissingCredentials, TokenEnv)
	}
	if base == "" {
		base = DefaultAPIBase
	}

	client := resty.New().
		SetTimeout(DefaultTimeout).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("Content-Type", "application/json")
	return &APIClient{base: base, http: client}, nil
}

// Applications lists up to count applications.
func (c *APIClient) Applications(ctx context.Context, count int) ([]Application, error) {
	var applications []Application
	query := url.Values{"count": {fmt.Sprint(count)}}
	if err := c.get(ctx, "/applications", query, &applications); err != nil {
		return nil, fmt.Errorf("failed to fetch applications: %w", err)
	}
	return applications, nil
}

// ErrorGroups lists the error groups of an application.
func (c *APIClient) ErrorGroups(ctx context.Context, appIdentifier string) ([]ErrorGroup, error) {
	var errorGroups []ErrorGroup
	path := fmt.Sprintf("/applications/%s/error-groups", url.PathEscape(appIdentifier))
	if err := c.get(ctx, path, nil, &errorGroups); err != nil {
		return nil, fmt.Errorf("failed to fetch error groups: %w", err)
	}
	return errorGroups, nil
}

// LatestCrashReport returns the most recent occurrence of an error group.
func (c *APIClient) LatestCrashReport(ctx context.Context, appIdentifier, errorGroupIdentifier string) (*CrashReport, error) {
	var reports []CrashReport
	path := fmt.Sprintf("/applications/%s/error-groups/%s/errors",
		url.PathEscape(appIdentifier), url.PathEscape(errorGroupIdentifier))
	if err := c.get(ctx, path, url.Values{"count": {"1"}}, &reports); err != nil {
		return nil, fmt.Errorf("failed to fetch error detail: %w", err)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no error details found")
	}
	return &reports[0], nil
}

func (c *APIClient) get(ctx context.Context, path string, query url.Values, out any) error {
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(c.base + path)
	if err != nil {
		return err
	}

	if response.StatusCode() != http.StatusOK {
		return &StatusError{StatusCode: response.StatusCode(), Body: string(response.Body())}
	}

	if err := json.Unmarshal(response.Body(), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
