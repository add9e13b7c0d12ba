// Package research calls the external research orchestrator that retrieves
// case law and synthesizes findings for a legal query.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// ErrResearch marks any failure of the research orchestrator.
var ErrResearch = errors.New("research failed")

// Client is an HTTP client for the research orchestrator.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a research client. timeout bounds each call.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type researchRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
}

type researchResponse struct {
	Findings       string                 `json:"findings"`
	CaseCount      int                    `json:"case_count"`
	ReferenceLinks []models.ReferenceLink `json:"reference_links"`
	Error          string                 `json:"error,omitempty"`
}

// Research runs a legal query. Every failure wraps ErrResearch.
func (c *Client) Research(ctx context.Context, query string, lang models.LanguageTag) (models.Research, error) {
	if c.endpoint == "" {
		return models.Research{}, fmt.Errorf("%w: no endpoint configured", ErrResearch)
	}

	reqBody, err := json.Marshal(researchRequest{Query: query, Language: string(lang)})
	if err != nil {
		return models.Research{}, fmt.Errorf("%w: marshal request: %w", ErrResearch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return models.Research{}, fmt.Errorf("%w: create request: %w", ErrResearch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Research{}, fmt.Errorf("%w: send request: %w", ErrResearch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Research{}, fmt.Errorf("%w: read response: %w", ErrResearch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Research{}, fmt.Errorf("%w: status %d: %s", ErrResearch, resp.StatusCode, truncate(string(body), 200))
	}

	var r researchResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return models.Research{}, fmt.Errorf("%w: decode response: %w", ErrResearch, err)
	}
	if r.Error != "" {
		return models.Research{}, fmt.Errorf("%w: %s", ErrResearch, r.Error)
	}
	if strings.TrimSpace(r.Findings) == "" {
		return models.Research{}, fmt.Errorf("%w: empty findings", ErrResearch)
	}

	return models.Research{
		Findings:       r.Findings,
		CaseCount:      r.CaseCount,
		ReferenceLinks: r.ReferenceLinks,
	}, nil
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
