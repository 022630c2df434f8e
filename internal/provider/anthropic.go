package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/why-cli/why/internal/model"
)

const anthropicVersion = "2023-06-01"

// Anthropic streams explanations from the Anthropic Messages API.
type Anthropic struct {
	APIKey   string
	Endpoint string // defaults to the production API
	Client   *http.Client
}

// NewAnthropic builds a client from the environment key. A missing key is
// an AuthError up front rather than a doomed request later.
func NewAnthropic(apiKey string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, &AuthError{Kind: KindAnthropic}
	}
	return &Anthropic{APIKey: apiKey}, nil
}

func (a *Anthropic) Kind() Kind { return KindAnthropic }

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicContentPart `json:"content"`
}

type anthropicContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

// Explain sends one streaming Messages request. Text deltas are forwarded
// to onToken as they arrive.
func (a *Anthropic) Explain(ctx context.Context, req Request, onToken func(string) bool) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = InfoFor(KindAnthropic).DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     modelName,
		MaxTokens: maxTokens,
		System:    model.SystemInstructions,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContentPart{{Type: "text", Text: req.UserMessage()}},
		}},
		Stream: true,
	})
	if err != nil {
		return "", err
	}

	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = InfoFor(KindAnthropic).Endpoint
	}
	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	resp, err := doWithRetry(ctx, client, KindAnthropic, endpoint, body, func(r *http.Request) {
		r.Header.Set("x-api-key", a.APIKey)
		r.Header.Set("anthropic-version", anthropicVersion)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sb strings.Builder
	var streamErr error
	err = readSSE(resp.Body, func(data []byte) bool {
		var evt struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(data, &evt); jsonErr != nil {
			streamErr = &ParseError{Kind: KindAnthropic, Err: jsonErr}
			return false
		}
		switch evt.Type {
		case "content_block_delta":
			if evt.Delta.Type == "text_delta" && evt.Delta.Text != "" {
				sb.WriteString(evt.Delta.Text)
				if onToken != nil && !onToken(evt.Delta.Text) {
					return false
				}
			}
		case "error":
			streamErr = &APIError{Kind: KindAnthropic, Status: resp.StatusCode, Detail: evt.Error.Message}
			return false
		case "message_stop":
			return false
		}
		return true
	})
	if streamErr != nil {
		return sb.String(), streamErr
	}
	if err != nil {
		return sb.String(), &ParseError{Kind: KindAnthropic, Err: err}
	}
	return sb.String(), nil
}
