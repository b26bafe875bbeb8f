package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/otg-controller/internal/automation"
	"github.com/nerrad567/otg-controller/internal/device"
	"github.com/nerrad567/otg-controller/internal/infrastructure/config"
)

// Defaults applied when the config leaves a field at zero.
const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 500
	defaultTimeout   = 60 * time.Second

	maxErrorBody = 64 << 10
)

// Client classifies screenshots through a chat completions endpoint.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

var _ automation.Classifier = (*Client)(nil)

// New creates a client from cfg, filling unset fields with defaults.
func New(cfg config.VisionConfig) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// ─── Wire Types ─────────────────────────────────────────────────────────────

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// verdict is the JSON object the prompt asks the model to return. Only
// caption and topics feed matching.
type verdict struct {
	Caption     string   `json:"caption"`
	Topics      []string `json:"topics"`
	ContentType string   `json:"contentType"`
	HasText     bool     `json:"hasText"`
	TextContent string   `json:"textContent"`
}

// ─── Classify ───────────────────────────────────────────────────────────────

// Classify asks the model what image shows.
//
// Parameters:
//   - ctx: Context for the HTTP request
//   - image: Encoded screenshot (JPEG or PNG)
//   - platform: Selects the prompt wording
//
// Returns:
//   - automation.Analysis: Caption and lowercase topics
//   - error: ErrNoAPIKey, ErrEmptyImage, *APIError, ErrEmptyResponse,
//     ErrBadResponse, or a transport error
func (c *Client) Classify(ctx context.Context, image []byte, platform device.Platform) (automation.Analysis, error) {
	if c.apiKey == "" {
		return automation.Analysis{}, ErrNoAPIKey
	}
	if len(image) == 0 {
		return automation.Analysis{}, ErrEmptyImage
	}

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt(platform)},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL(image), Detail: "low"}},
			},
		}},
		MaxTokens:      c.maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return automation.Analysis{}, fmt.Errorf("vision: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return automation.Analysis{}, fmt.Errorf("vision: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return automation.Analysis{}, fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return automation.Analysis{}, parseError(resp)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return automation.Analysis{}, fmt.Errorf("%w: decoding completion: %w", ErrBadResponse, err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return automation.Analysis{}, ErrEmptyResponse
	}

	return parseVerdict(completion.Choices[0].Message.Content)
}

func parseVerdict(content string) (automation.Analysis, error) {
	var v verdict
	if err := json.Unmarshal([]byte(stripFence(content)), &v); err != nil {
		return automation.Analysis{}, fmt.Errorf("%w: %q", ErrBadResponse, truncate(content, 200))
	}

	topics := make([]string, 0, len(v.Topics))
	for _, t := range v.Topics {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			topics = append(topics, t)
		}
	}
	return automation.Analysis{Caption: strings.TrimSpace(v.Caption), Topics: topics}, nil
}

// stripFence removes a ```json fence some compatible servers add even in
// JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // Best effort error detail

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		if errResp.Error.Code != nil {
			apiErr.Code = fmt.Sprint(errResp.Error.Code)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
