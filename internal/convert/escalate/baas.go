package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const baasTimeout = 30 * time.Second

// BaasProvider renders a URL's page into HTML via a third-party
// "browser-as-a-service" backend, generalising webx.cloudflareRenderer's
// POST-JSON shape. Callers run the returned HTML through the normal
// extraction + markdown pipeline.
type BaasProvider interface {
	// Name identifies the provider for escalation-log entries.
	Name() string

	// Render returns the rendered HTML (and page title, if the backend
	// supplies one) for targetURL.
	Render(ctx context.Context, targetURL string) (title, html string, err error)
}

// Providers returns the configured BaaS providers ordered cost/quality
// ascending, skipping any whose credentials are unset.
func Providers(cfg BaasConfig) []BaasProvider {
	var out []BaasProvider
	if cfg.Cloudflare.AccountID != "" && cfg.Cloudflare.APIToken != "" {
		out = append(out, newCloudflareRenderer(cfg.Cloudflare))
	}
	if cfg.ScraperAPI.APIKey != "" {
		out = append(out, newScraperAPIRenderer(cfg.ScraperAPI))
	}
	if cfg.Browserless.APIKey != "" {
		out = append(out, newBrowserlessRenderer(cfg.Browserless))
	}
	return out
}

// BaasConfig carries per-provider credentials, loaded from the top-level
// process config.
type BaasConfig struct {
	Cloudflare  CloudflareConfig
	ScraperAPI  ScraperAPIConfig
	Browserless BrowserlessConfig
}

type CloudflareConfig struct {
	AccountID string
	APIToken  string
}

type ScraperAPIConfig struct {
	APIKey string
}

type BrowserlessConfig struct {
	APIKey   string
	Endpoint string
}

// --- Cloudflare Browser Rendering ---------------------------------------

type cloudflareRenderer struct {
	cfg    CloudflareConfig
	client *http.Client
}

func newCloudflareRenderer(cfg CloudflareConfig) *cloudflareRenderer {
	return &cloudflareRenderer{cfg: cfg, client: &http.Client{Timeout: baasTimeout}}
}

func (r *cloudflareRenderer) Name() string { return "cloudflare" }

type cfContentRequest struct {
	URL string `json:"url"`
}

type cfContentResponse struct {
	Success bool `json:"success"`
	Result  struct {
		HTML  string `json:"html"`
		Title string `json:"title"`
	} `json:"result"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (r *cloudflareRenderer) Render(ctx context.Context, targetURL string) (string, string, error) {
	endpoint := fmt.Sprintf(
		"https://api.cloudflare.com/client/v4/accounts/%s/browser-rendering/content",
		r.cfg.AccountID,
	)

	payload, err := json.Marshal(cfContentRequest{URL: targetURL})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("create cloudflare request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("cloudflare request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", "", fmt.Errorf("read cloudflare response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("cloudflare HTTP %d: %s", resp.StatusCode, string(body[:min(512, len(body))]))
	}

	var cfResp cfContentResponse
	if err := json.Unmarshal(body, &cfResp); err != nil {
		return "", "", fmt.Errorf("parse cloudflare response: %w", err)
	}
	if !cfResp.Success {
		msg := "unknown error"
		if len(cfResp.Errors) > 0 {
			msg = cfResp.Errors[0].Message
		}
		return "", "", fmt.Errorf("cloudflare API error: %s", msg)
	}

	return cfResp.Result.Title, cfResp.Result.HTML, nil
}

// --- ScraperAPI -----------------------------------------------------------

type scraperAPIRenderer struct {
	cfg    ScraperAPIConfig
	client *http.Client
}

func newScraperAPIRenderer(cfg ScraperAPIConfig) *scraperAPIRenderer {
	return &scraperAPIRenderer{cfg: cfg, client: &http.Client{Timeout: baasTimeout}}
}

func (r *scraperAPIRenderer) Name() string { return "scraperapi" }

func (r *scraperAPIRenderer) Render(ctx context.Context, targetURL string) (string, string, error) {
	endpoint := fmt.Sprintf(
		"https://api.scraperapi.com/?api_key=%s&url=%s&render=true",
		r.cfg.APIKey, targetURL,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("create scraperapi request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("scraperapi request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", "", fmt.Errorf("read scraperapi response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("scraperapi HTTP %d: %s", resp.StatusCode, string(body[:min(512, len(body))]))
	}

	return "", string(body), nil
}

// --- Browserless -----------------------------------------------------------

type browserlessRenderer struct {
	cfg    BrowserlessConfig
	client *http.Client
}

func newBrowserlessRenderer(cfg BrowserlessConfig) *browserlessRenderer {
	return &browserlessRenderer{cfg: cfg, client: &http.Client{Timeout: baasTimeout}}
}

func (r *browserlessRenderer) Name() string { return "browserless" }

type browserlessRequest struct {
	URL string `json:"url"`
}

func (r *browserlessRenderer) Render(ctx context.Context, targetURL string) (string, string, error) {
	endpoint := r.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://chrome.browserless.io"
	}
	endpoint = endpoint + "/content?token=" + r.cfg.APIKey

	payload, err := json.Marshal(browserlessRequest{URL: targetURL})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("create browserless request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("browserless request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", "", fmt.Errorf("read browserless response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("browserless HTTP %d: %s", resp.StatusCode, string(body[:min(512, len(body))]))
	}

	return "", string(body), nil
}

// RenderInOrder tries providers in order, falling to the next on any
// error (matching a quota/rate-limit response), and returns the first
// success.
func RenderInOrder(ctx context.Context, providers []BaasProvider, targetURL string) (providerName, title, html string, err error) {
	var lastErr error
	for _, p := range providers {
		title, html, renderErr := p.Render(ctx, targetURL)
		if renderErr == nil {
			return p.Name(), title, html, nil
		}
		lastErr = renderErr
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no BaaS providers configured")
	}
	return "", "", "", lastErr
}
