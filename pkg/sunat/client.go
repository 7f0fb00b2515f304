// Package sunat talks to the fiscal authority's document gateway. Both
// operations are plain request/response over HTTPS with JSON bodies; the
// gateway itself processes submissions asynchronously, so a create call
// usually answers with a ticket instead of artifact links.
package sunat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fiscalflow/platform/pkg/common/config"
	"github.com/fiscalflow/platform/pkg/common/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// RejectionError is a definitive rejection by the fiscal authority. The Body
// carries the gateway's error payload verbatim so it can be recorded on the
// document untouched.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("gateway rejected submission (status %d): %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL       string
	httpClient    *http.Client
	createTimeout time.Duration
	queryTimeout  time.Duration
}

// NewClient builds a gateway client authenticated with OAuth2 client
// credentials when a token URL is configured, falling back to a static
// bearer token otherwise.
func NewClient(cfg *config.Config) *Client {
	base := newTransportClient()

	if cfg.GatewayTokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.GatewayClientID,
			ClientSecret: cfg.GatewayClientSecret,
			TokenURL:     cfg.GatewayTokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		base = oauth2.NewClient(ctx, cc.TokenSource(ctx))
	} else if cfg.GatewayStaticToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GatewayStaticToken})
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		base = oauth2.NewClient(ctx, src)
	}

	return &Client{
		baseURL:       cfg.GatewayBaseURL,
		httpClient:    base,
		createTimeout: cfg.CreateTimeout,
		queryTimeout:  cfg.QueryTimeout,
	}
}

func newTransportClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// CreateDocument submits the payload. A RejectionError means the authority
// refused the document; any other error is a transport failure the caller
// may retry through polling.
func (c *Client) CreateDocument(ctx context.Context, payload *models.SubmissionPayload) (*models.CreateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway create call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &RejectionError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway unavailable: status %d", resp.StatusCode)
	}

	var created models.CreateResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &created, nil
}

// QueryDocument fetches the current processing status of a submitted
// document by its correlation tuple.
func (c *Client) QueryDocument(ctx context.Context, corr models.CorrelationPayload) (*models.QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/documents/%s/%s/%d", c.baseURL, corr.DocumentType, corr.Series, corr.Number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway query call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway query returned status %d", resp.StatusCode)
	}

	var status models.QueryResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("failed to decode gateway status: %w", err)
	}
	return &status, nil
}
