package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/why-cli/why/internal/model"
)

// chatCompletions is the shared client for OpenAI-style chat completion
// APIs. OpenAI and OpenRouter differ only in endpoint, default model and
// the extra attribution headers OpenRouter asks for.
type chatCompletions struct {
	kind     Kind
	apiKey   string
	endpoint string
	client   *http.Client
	headers  map[string]string
}

// OpenAI streams explanations from the OpenAI chat completions API.
type OpenAI struct{ chatCompletions }

// NewOpenAI builds a client from the environment key.
func NewOpenAI(apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, &AuthError{Kind: KindOpenAI}
	}
	return &OpenAI{chatCompletions{kind: KindOpenAI, apiKey: apiKey}}, nil
}

// OpenRouter streams explanations from the OpenRouter API, which speaks
// the chat completions protocol.
type OpenRouter struct{ chatCompletions }

// NewOpenRouter builds a client from the environment key.
func NewOpenRouter(apiKey string) (*OpenRouter, error) {
	if apiKey == "" {
		return nil, &AuthError{Kind: KindOpenRouter}
	}
	return &OpenRouter{chatCompletions{
		kind:   KindOpenRouter,
		apiKey: apiKey,
		headers: map[string]string{
			"HTTP-Referer": "https://github.com/why-cli/why",
			"X-Title":      "why",
		},
	}}, nil
}

func (c *chatCompletions) Kind() Kind { return c.kind }

// SetEndpoint overrides the API endpoint. Used by tests.
func (c *chatCompletions) SetEndpoint(url string) { c.endpoint = url }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream"`
}

// Explain sends one streaming chat completion request. Content deltas are
// forwarded to onToken; the stream ends on [DONE].
func (c *chatCompletions) Explain(ctx context.Context, req Request, onToken func(string) bool) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = InfoFor(c.kind).DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model: modelName,
		Messages: []chatMessage{
			{Role: "system", Content: model.SystemInstructions},
			{Role: "user", Content: req.UserMessage()},
		},
		MaxTokens: maxTokens,
		Stream:    true,
	})
	if err != nil {
		return "", err
	}

	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = InfoFor(c.kind).Endpoint
	}
	client := c.client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	resp, err := doWithRetry(ctx, client, c.kind, endpoint, body, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
		for k, v := range c.headers {
			r.Header.Set(k, v)
		}
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sb strings.Builder
	var streamErr error
	err = readSSE(resp.Body, func(data []byte) bool {
		var evt struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if jsonErr := json.Unmarshal(data, &evt); jsonErr != nil {
			streamErr = &ParseError{Kind: c.kind, Err: jsonErr}
			return false
		}
		if len(evt.Choices) > 0 {
			if text := evt.Choices[0].Delta.Content; text != "" {
				sb.WriteString(text)
				if onToken != nil && !onToken(text) {
					return false
				}
			}
		}
		return true
	})
	if streamErr != nil {
		return sb.String(), streamErr
	}
	if err != nil {
		return sb.String(), &ParseError{Kind: c.kind, Err: err}
	}
	return sb.String(), nil
}
