package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultModel = "gpt-4o-mini"

	apiURL      = "https://api.openai.com/v1/chat/completions"
	maxTokens   = 4096
	timeoutSecs = 60

	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SchemaSpec names a strict JSON schema the model output must satisfy.
type SchemaSpec struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// ResponseFormat selects the completion output mode: "json_schema" with a
// SchemaSpec, or the looser "json_object".
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *SchemaSpec `json:"json_schema,omitempty"`
}

type ChatRequest struct {
	Messages       []Message
	ResponseFormat *ResponseFormat
	Temperature    float64
	MaxTokens      int
}

type ChatResponse struct {
	Content      string
	FinishReason string
}

// ChatClient is the transport the resolver speaks through. Tests substitute
// a scripted fake.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Name() string
}

type openAIClient struct {
	apiKey string
	model  string
	http   *http.Client
	logger zerolog.Logger
}

func NewOpenAIClient(apiKey, model string) (ChatClient, error) {
	return NewOpenAIClientWithLogger(apiKey, model, zerolog.Nop())
}

func NewOpenAIClientWithLogger(apiKey, model string, logger zerolog.Logger) (ChatClient, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	model = strings.Trim(strings.TrimSpace(model), "\"'")
	if model == "" {
		model = defaultModel
	}
	return &openAIClient{
		apiKey: key,
		model:  model,
		http: &http.Client{
			Timeout: timeoutSecs * time.Second,
		},
		logger: logger,
	}, nil
}

func (c *openAIClient) Name() string { return c.model }

type chatPayload struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatAPIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (c *openAIClient) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if len(req.Messages) == 0 {
		return ChatResponse{}, errors.New("no messages")
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("retrying chat completion")
			select {
			case <-ctx.Done():
				return ChatResponse{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		payload := chatPayload{
			Model:          c.model,
			Messages:       req.Messages,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
			ResponseFormat: req.ResponseFormat,
		}
		if payload.MaxTokens <= 0 {
			payload.MaxTokens = maxTokens
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return ChatResponse{}, fmt.Errorf("marshal payload: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
		if err != nil {
			return ChatResponse{}, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			if attempt < maxRetries {
				continue
			}
			return ChatResponse{}, lastErr
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if attempt < maxRetries {
				continue
			}
			return ChatResponse{}, lastErr
		}

		if resp.StatusCode >= 400 {
			var apiResp chatAPIResponse
			if err := json.Unmarshal(data, &apiResp); err == nil && apiResp.Error != nil {
				lastErr = fmt.Errorf("openai %d: %s (type: %s, code: %s)",
					resp.StatusCode, apiResp.Error.Message, apiResp.Error.Type, apiResp.Error.Code)
			} else {
				lastErr = fmt.Errorf("openai %d: %s", resp.StatusCode, truncate(string(data), 500))
			}
			c.logger.Error().Int("status", resp.StatusCode).Int("attempt", attempt).Err(lastErr).Msg("chat completion error")
			if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < maxRetries {
				continue
			}
			return ChatResponse{}, lastErr
		}

		var apiResp chatAPIResponse
		if err := json.Unmarshal(data, &apiResp); err != nil {
			return ChatResponse{}, fmt.Errorf("parse response: %w", err)
		}
		if len(apiResp.Choices) == 0 {
			return ChatResponse{}, errors.New("no choices in response")
		}
		choice := apiResp.Choices[0]
		c.logger.Debug().
			Str("finish_reason", choice.FinishReason).
			Int("total_tokens", apiResp.Usage.TotalTokens).
			Str("preview", truncate(choice.Message.Content, 200)).
			Msg("chat completion")
		return ChatResponse{Content: choice.Message.Content, FinishReason: choice.FinishReason}, nil
	}

	return ChatResponse{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
