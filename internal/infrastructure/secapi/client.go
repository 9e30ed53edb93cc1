package secapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/entities"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/fuzzy"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/httpx"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/resilience"
)

// Client resolves company names through the sec-api.io filing query API.
type Client struct {
	baseURL    string
	apiKey     string
	threshold  float64
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey string, threshold float64, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		threshold:  threshold,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type queryRequest struct {
	Query struct {
		QueryString struct {
			Query string `json:"query"`
		} `json:"query_string"`
	} `json:"query"`
	From string                         `json:"from"`
	Size string                         `json:"size"`
	Sort []map[string]map[string]string `json:"sort"`
}

type filing struct {
	CIK         string `json:"cik"`
	Ticker      string `json:"ticker"`
	CompanyName string `json:"companyName"`
}

type queryResponse struct {
	Filings []filing `json:"filings"`
}

// Resolve asks for the newest 10-K filed under the name and scores the filer's
// name against it.
func (c *Client) Resolve(ctx context.Context, name string) (*domain.ResolvedCompany, error) {
	normalized := entities.Normalize(name)
	if normalized == "" {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "secapi resolve", fmt.Errorf("empty name"))
	}

	resp, err := resilience.Call(ctx, c.executor, "secapi.query", func(ctx context.Context) (queryResponse, error) {
		var out queryResponse
		err := c.postJSON(ctx, buildQuery(name), &out)
		return out, err
	}, httpx.Classify)
	if err != nil {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "secapi resolve", httpx.WrapTemporary("secapi query", err))
	}
	if len(resp.Filings) == 0 {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "secapi resolve", fmt.Errorf("no filings for %q", name))
	}

	top := resp.Filings[0]
	score := fuzzy.NameScore(normalized, entities.Normalize(top.CompanyName))
	if score < c.threshold {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "secapi resolve",
			fmt.Errorf("filer %q scores %.2f against %q", top.CompanyName, score, name))
	}
	return &domain.ResolvedCompany{
		Identifier: strings.TrimSpace(top.CIK),
		Ticker:     strings.ToUpper(strings.TrimSpace(top.Ticker)),
		Name:       strings.TrimSpace(top.CompanyName),
		Score:      score,
	}, nil
}

func buildQuery(name string) queryRequest {
	var q queryRequest
	clean := strings.Join(strings.Fields(strings.ReplaceAll(name, `"`, "")), " ")
	q.Query.QueryString.Query = fmt.Sprintf(`companyName:"%s" AND formType:"10-K"`, clean)
	q.From = "0"
	q.Size = "1"
	q.Sort = []map[string]map[string]string{{"filedAt": {"order": "desc"}}}
	return q
}

func (c *Client) postJSON(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal secapi request: %w", err)
	}

	endpoint := c.baseURL
	if c.apiKey != "" {
		endpoint += "?token=" + url.QueryEscape(c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create secapi request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("secapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return httpx.NewStatusError("secapi query", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode secapi response: %w", err)
	}
	return nil
}
