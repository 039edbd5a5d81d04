package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
)

// AnalysisHTTPClient implements AnalysisClientInterface against the analysis
// engine's HTTP API.
type AnalysisHTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewAnalysisHTTPClient creates a client for the analysis engine.
func NewAnalysisHTTPClient(baseURL string) *AnalysisHTTPClient {
	return &AnalysisHTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetAssessment fetches the current assessment facts for a developer.
func (c *AnalysisHTTPClient) GetAssessment(ctx context.Context, developerID string) (*Assessment, error) {
	url := fmt.Sprintf("%s/api/v1/developers/%s/assessment", c.baseURL, developerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "build assessment request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "analysis engine unreachable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, apperrors.NotFound("assessment", developerID)
	default:
		return nil, apperrors.Newf(apperrors.CodeUnavailable, "analysis engine returned status %d", resp.StatusCode)
	}

	assessment := &Assessment{}
	if err := json.NewDecoder(resp.Body).Decode(assessment); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "decode assessment response")
	}
	return assessment, nil
}
