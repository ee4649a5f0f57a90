// Package social publishes day posts to a Facebook page through the Graph API.
package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultBaseURL is the Graph API host.
const DefaultBaseURL = "https://graph.facebook.com"

// APIError is an error response from the Graph API.
type APIError struct {
	StatusCode int
	Type       string
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	parts := []string{fmt.Sprintf("status %d", e.StatusCode)}
	if e.Type != "" {
		parts = append(parts, "type "+e.Type)
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else {
		parts = append(parts, "Unknown error response from Facebook.")
	}
	return "Facebook API error (" + strings.Join(parts, ", ") + ")"
}

// IsAPIError checks if an error came back from the Graph API.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Options configures a Poster.
type Options struct {
	PageID      string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	BaseURL     string // Defaults to DefaultBaseURL
}

// Poster publishes to a page feed.
type Poster struct {
	client  *http.Client
	logger  *slog.Logger
	opts    Options
	baseURL string
}

// NewPoster creates a Poster.
func NewPoster(opts Options, logger *slog.Logger) *Poster {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Poster{
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  logger,
		opts:    opts,
		baseURL: strings.TrimSuffix(base, "/") + "/" + opts.APIVersion + "/",
	}
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// do sends a request and decodes a JSON body into out, mapping Graph errors to *APIError.
func (p *Poster) do(ctx context.Context, method, endpoint string, form url.Values, out any) error {
	var body io.Reader = http.NoBody
	target := p.baseURL + endpoint
	if method == http.MethodGet {
		target += "?" + form.Encode()
	} else {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("HTTP request failed", "endpoint", endpoint, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return fmt.Errorf("graph request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read graph response: %w", err)
	}
	p.logger.Info("HTTP request completed",
		"method", method,
		"endpoint", endpoint,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	var gerr graphError
	if err := json.Unmarshal(raw, &gerr); err != nil {
		return fmt.Errorf("invalid JSON response from Facebook (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 || gerr.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if gerr.Error != nil {
			apiErr.Type = gerr.Error.Type
			apiErr.Code = gerr.Error.Code
			apiErr.Message = gerr.Error.Message
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode graph response: %w", err)
		}
	}
	return nil
}

// Post publishes message with an optional link and returns the new post id.
func (p *Poster) Post(ctx context.Context, message, link string) (string, error) {
	if message == "" {
		return "", errors.New("message is required for a Facebook post")
	}
	form := url.Values{
		"message":      {message},
		"access_token": {p.opts.AccessToken},
	}
	if link != "" {
		form.Set("link", link)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := p.do(ctx, http.MethodPost, p.opts.PageID+"/feed", form, &out); err != nil {
		return "", err
	}
	p.logger.Info("Published Facebook post", "page_id", p.opts.PageID, "post_id", out.ID)
	return out.ID, nil
}
