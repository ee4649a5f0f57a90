// Package imagegen renders day thumbnails with the Gemini image model.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// AspectRatio is the only aspect ratio requested from the model.
const AspectRatio = "16:9"

// DefaultBaseURL is the Generative Language API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/"

const defaultImageMIME = "image/png"

// APIError is a structured failure from the image model.
type APIError struct {
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: %s (status %d)", e.Message, e.Status)
}

// Request is one image generation call.
type Request struct {
	Model       string // Overrides the client default
	Prompt      string
	BaseImage   []byte
	BaseMIME    string // Defaults to image/png
	AspectRatio string // Anything other than AspectRatio is replaced and reported as a warning
}

// Image is a generated image.
type Image struct {
	MIMEType string
	Data     []byte
}

// Result holds the images returned for a request.
type Result struct {
	Images  []Image
	Warning string
}

// GeminiOptions configures a Gemini client.
type GeminiOptions struct {
	APIKey      string
	Model       string
	BaseURL     string        // Defaults to DefaultBaseURL
	Timeout     time.Duration // Per request
	MinInterval time.Duration // Minimum spacing between requests; 0 disables throttling
	HTTPClient  *http.Client
}

// Gemini calls models/{model}:generateContent.
type Gemini struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	apiKey  string
	model   string
	baseURL string
}

// NewGemini creates a client.
func NewGemini(opts GeminiOptions, logger *slog.Logger) *Gemini {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	return &Gemini{
		client:  client,
		limiter: limiter,
		logger:  logger,
		apiKey:  opts.APIKey,
		model:   opts.Model,
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
	}
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		ImageConfig        struct {
			AspectRatio string `json:"aspectRatio"`
		} `json:"imageConfig"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func modelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// Generate sends the prompt and base image and returns the generated images.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}
	switch {
	case model == "":
		return nil, &APIError{Message: "Missing model", Status: http.StatusBadRequest}
	case req.Prompt == "":
		return nil, &APIError{Message: "Missing prompt", Status: http.StatusBadRequest}
	case len(req.BaseImage) == 0:
		return nil, &APIError{Message: "Missing baseImage", Status: http.StatusBadRequest}
	}

	result := &Result{}
	if req.AspectRatio != "" && req.AspectRatio != AspectRatio {
		result.Warning = fmt.Sprintf("Only aspectRatio %q is supported. Using default.", AspectRatio)
		g.logger.Warn("Unsupported aspect ratio requested", "requested", req.AspectRatio, "using", AspectRatio)
	}
	mime := req.BaseMIME
	if mime == "" {
		mime = defaultImageMIME
	}

	var body generateRequest
	body.Contents = []content{{Parts: []part{
		{Text: req.Prompt},
		{InlineData: &inlineData{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(req.BaseImage)}},
	}}}
	body.GenerationConfig.ResponseModalities = []string{"IMAGE"}
	body.GenerationConfig.ImageConfig.AspectRatio = AspectRatio

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	url := g.baseURL + modelPath(model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", g.apiKey)

	g.logger.Info("HTTP request starting", "method", http.MethodPost, "model", model, "prompt_chars", len(req.Prompt), "base_image_bytes", len(req.BaseImage))
	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			g.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}
	g.logger.Info("HTTP request completed",
		"model", model,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(raw))

	details := json.RawMessage(raw)
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(map[string]string{"text": string(raw)})
		details = quoted
	}

	var parsed generateResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "Gemini API error"
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return result, &APIError{Message: msg, Status: resp.StatusCode, Details: details}
	}

	for _, c := range parsed.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return result, fmt.Errorf("decode image: %w", err)
			}
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = defaultImageMIME
			}
			result.Images = append(result.Images, Image{MIMEType: mime, Data: data})
		}
	}
	if len(result.Images) == 0 {
		return result, &APIError{Message: "No images found in response", Status: resp.StatusCode, Details: details}
	}
	return result, nil
}
