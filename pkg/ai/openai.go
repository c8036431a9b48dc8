package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o-mini"
	maxReplyTokens       = 500
)

// OpenAIResponder calls any OpenAI-compatible /v1/chat/completions endpoint.
// Works with the hosted API, vLLM, LiteLLM, OpenRouter, self-hosted models, etc.
type OpenAIResponder struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIResponder builds a Responder against an OpenAI-compatible API.
// baseURL should include the /v1 prefix; empty values fall back to the
// hosted API and the default model.
func NewOpenAIResponder(baseURL, apiKey, model string, timeout time.Duration) *OpenAIResponder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIResponder{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Reply asks the model for a response to text and an optional image URL.
// It never fails: missing credentials or upstream errors resolve to a
// fallback string that the caller treats as a normal reply.
func (r *OpenAIResponder) Reply(ctx context.Context, text, imageURL string) string {
	if r.apiKey == "" {
		return "OPENAI_API_KEY is not configured on the server."
	}
	reply, err := r.complete(ctx, text, imageURL)
	if err != nil {
		slog.Error("ai responder failed", "err", err)
		return FallbackReply
	}
	return reply
}

func (r *OpenAIResponder) complete(ctx context.Context, text, imageURL string) (string, error) {
	if strings.TrimSpace(text) == "" {
		text = "What is in this image?"
	}
	content := []oaiContentPart{{Type: "text", Text: text}}
	if imageURL != "" {
		content = append(content, oaiContentPart{Type: "image_url", ImageURL: &oaiImageURL{URL: imageURL}})
	}
	reqBody := oaiChatRequest{
		Model:     r.model,
		Messages:  []oaiMessage{{Role: "user", Content: content}},
		MaxTokens: maxReplyTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("openai api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("openai api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("openai decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai api")
	}
	reply := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("empty response from openai api")
	}
	return reply, nil
}

// OpenAI-compatible request/response types.

type oaiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

type oaiImageURL struct {
	URL string `json:"url"`
}

type oaiMessage struct {
	Role    string           `json:"role"`
	Content []oaiContentPart `json:"content"`
}

type oaiChatRequest struct {
	Model     string       `json:"model"`
	Messages  []oaiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
