package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/otg-controller/internal/device"
	"github.com/nerrad567/otg-controller/internal/infrastructure/config"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// completion wraps content in a chat completions reply.
func completion(content string) string {
	data, _ := json.Marshal(map[string]any{ //nolint:errcheck // Constant shape
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(data)
}

// captured holds the last request the fake endpoint saw.
type captured struct {
	mu      sync.Mutex
	req     completionRequest
	headers http.Header
}

func (c *captured) get() (completionRequest, http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req, c.headers
}

func setupServer(t *testing.T, status int, body string) (*Client, *captured) {
	t.Helper()
	seen := &captured{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req completionRequest
		_ = json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck // Asserted by the test
		seen.mu.Lock()
		seen.req = req
		seen.headers = r.Header.Clone()
		seen.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body)) //nolint:errcheck // Test server
	}))
	t.Cleanup(srv.Close)

	client := New(config.VisionConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-4o-mini", MaxTokens: 300})
	return client, seen
}

func TestNew_Defaults(t *testing.T) {
	c := New(config.VisionConfig{})
	if c.baseURL != defaultBaseURL || c.model != defaultModel || c.maxTokens != defaultMaxTokens {
		t.Errorf("New() = %+v, want defaults", c)
	}
	if c.httpClient.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, defaultTimeout)
	}
	if c.Configured() {
		t.Error("Configured() = true without an API key")
	}
}

func TestClassify(t *testing.T) {
	reply := completion(`{"caption":" A girl dancing to music ","topics":["Dance"," MUSIC ",""],"contentType":"dance","hasText":false,"textContent":""}`)
	client, seen := setupServer(t, http.StatusOK, reply)

	analysis, err := client.Classify(context.Background(), jpegBytes, device.PlatformInstagram)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if analysis.Caption != "A girl dancing to music" {
		t.Errorf("Caption = %q", analysis.Caption)
	}
	if len(analysis.Topics) != 2 || analysis.Topics[0] != "dance" || analysis.Topics[1] != "music" {
		t.Errorf("Topics = %v, want [dance music]", analysis.Topics)
	}

	got, headers := seen.get()
	if auth := headers.Get("Authorization"); auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != "gpt-4o-mini" || got.MaxTokens != 300 || got.ResponseFormat.Type != "json_object" {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Content) != 2 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	text, img := got.Messages[0].Content[0], got.Messages[0].Content[1]
	if text.Type != "text" || !strings.Contains(text.Text, "Instagram Reel") {
		t.Errorf("text part = %+v", text)
	}
	if img.Type != "image_url" || img.ImageURL == nil || img.ImageURL.Detail != "low" ||
		!strings.HasPrefix(img.ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image part = %+v", img)
	}
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"empty choices", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse},
		{"blank content", http.StatusOK, completion("  "), ErrEmptyResponse},
		{"not json", http.StatusOK, completion("I see a cat"), ErrBadResponse},
		{"broken envelope", http.StatusOK, `{"choices":`, ErrBadResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupServer(t, tt.status, tt.body)
			_, err := client.Classify(context.Background(), jpegBytes, device.PlatformTikTok)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Classify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClassify_APIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{"openai shape", 429, `{"error":{"message":"Rate limit reached","code":"rate_limit_exceeded"}}`, "Rate limit reached", "rate_limit_exceeded"},
		{"plain body", 502, "upstream down", "upstream down", ""},
		{"empty body", 503, "", "Service Unavailable", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupServer(t, tt.status, tt.body)
			_, err := client.Classify(context.Background(), jpegBytes, device.PlatformTikTok)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Classify() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMessage || apiErr.Code != tt.wantCode {
				t.Errorf("APIError = %+v", apiErr)
			}
			if apiErr.IsRateLimited() != (tt.status == 429) {
				t.Errorf("IsRateLimited() = %v", apiErr.IsRateLimited())
			}
		})
	}
}

func TestClassify_Preconditions(t *testing.T) {
	noKey := New(config.VisionConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := noKey.Classify(context.Background(), jpegBytes, device.PlatformTikTok); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Classify(no key) error = %v, want ErrNoAPIKey", err)
	}

	keyed := New(config.VisionConfig{BaseURL: "http://127.0.0.1:1", APIKey: "sk"})
	if _, err := keyed.Classify(context.Background(), nil, device.PlatformTikTok); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Classify(nil image) error = %v, want ErrEmptyImage", err)
	}
}

func TestParseVerdict_Fenced(t *testing.T) {
	got, err := parseVerdict("```json\n{\"caption\":\"Pasta\",\"topics\":[\"food\"]}\n```")
	if err != nil {
		t.Fatalf("parseVerdict() error = %v", err)
	}
	if got.Caption != "Pasta" || len(got.Topics) != 1 || got.Topics[0] != "food" {
		t.Errorf("parseVerdict() = %+v", got)
	}
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		platform device.Platform
		want     string
	}{
		{device.PlatformTikTok, "TikTok"},
		{device.PlatformInstagram, "Instagram Reel"},
		{"", "short-form video app"},
	}
	for _, tt := range tests {
		p := Prompt(tt.platform)
		if !strings.Contains(p, tt.want) || strings.Contains(p, "{{app}}") {
			t.Errorf("Prompt(%q) missing %q", tt.platform, tt.want)
		}
		if !strings.Contains(p, `"topics"`) {
			t.Errorf("Prompt(%q) does not ask for topics", tt.platform)
		}
	}
}

func TestDataURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if got := dataURL(png); !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("dataURL(png) = %q", got[:30])
	}
	if got := dataURL([]byte("??")); !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("dataURL(unknown) = %q", got)
	}
}
