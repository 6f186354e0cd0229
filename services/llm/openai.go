// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm wraps the OpenAI REST API with raw net/http: chat completions
// for intent classification and the date fallback, embeddings for retrieval.
// No third-party SDK — the two endpoints we touch are small and stable.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams tunes a chat completion call. Nil fields use API
// defaults.
type GenerationParams struct {
	Temperature *float32
	MaxTokens   *int
}

// =============================================================================
// OpenAI Wire Types
// =============================================================================

type openaiChatRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	Temperature         *float32  `json:"temperature,omitempty"`
	MaxCompletionTokens *int      `json:"max_completion_tokens,omitempty"`
}

type openaiChatResponse struct {
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type openaiEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *openaiError `json:"error,omitempty"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient calls the OpenAI chat-completions and embeddings endpoints.
//
// Description:
//
//	Uses the REST API directly without third-party SDKs. The embedding model
//	identifier is fixed at construction so every query and every stored
//	poster vector share the same model — mixing models silently degrades
//	similarity scores.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient     *http.Client
	apiKey         string
	chatModel      string
	embeddingModel string
	baseURL        string
}

// NewOpenAIClient creates a client from environment variables.
//
// Description:
//
//	Reads OPENAI_API_KEY, OPENAI_MODEL (default gpt-4o-mini), and
//	OPENAI_EMBEDDING_MODEL (default text-embedding-3-small).
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil if OPENAI_API_KEY is missing.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		slog.Warn("OpenAI API key is empty. OpenAI client will not function.")
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	chatModel := os.Getenv("OPENAI_MODEL")
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	embeddingModel := os.Getenv("OPENAI_EMBEDDING_MODEL")
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	slog.Info("Initializing OpenAI client",
		slog.String("chat_model", chatModel),
		slog.String("embedding_model", embeddingModel),
	)
	return &OpenAIClient{
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		apiKey:         apiKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		baseURL:        defaultOpenAIBaseURL,
	}, nil
}

// NewOpenAIClientWithConfig creates a client with explicit configuration.
//
// Description:
//
//	Creates an OpenAIClient without reading environment variables. Useful
//	for testing with mock servers.
func NewOpenAIClientWithConfig(apiKey, chatModel, embeddingModel, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		apiKey:         apiKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		baseURL:        baseURL,
	}
}

// Chat sends a chat completion request and returns the assistant's text.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history (system + user turns).
//   - params: Generation parameters.
//
// Outputs:
//   - string: The assistant's response text.
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	reqPayload := openaiChatRequest{
		Model:    o.chatModel,
		Messages: messages,
	}
	if params.Temperature != nil {
		reqPayload.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		reqPayload.MaxCompletionTokens = params.MaxTokens
	}

	body, err := o.post(ctx, "/chat/completions", reqPayload)
	if err != nil {
		return "", err
	}

	var apiResp openaiChatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("openai: parsing chat response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: returned no choices")
	}

	slog.Debug("Received OpenAI chat response",
		slog.String("finish_reason", apiResp.Choices[0].FinishReason),
		slog.Int("response_len", len(apiResp.Choices[0].Message.Content)),
	)

	return apiResp.Choices[0].Message.Content, nil
}

// Embed converts text to an embedding vector with the client's fixed
// embedding model.
//
// Outputs:
//   - []float32: The embedding. Never nil on success — an empty vector from
//     the API is an error, not a result.
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := o.post(ctx, "/embeddings", openaiEmbedRequest{
		Model: o.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, err
	}

	var apiResp openaiEmbedResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: parsing embed response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Data) == 0 || len(apiResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai: returned empty embedding")
	}

	return apiResp.Data[0].Embedding, nil
}

// post marshals payload, issues the request, and returns the raw body for a
// 200 response.
func (o *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("openai: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}
	return bodyBytes, nil
}
