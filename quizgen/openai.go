// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/danielhkuo/quizsmash/models"
)

const systemPrompt = "You are a quiz master. Generate fun, engaging quiz questions."

// jsonArray matches the first [...] block; models sometimes wrap the array
// in prose or code fences
var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// OpenAI generates questions with the chat completions API
type OpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	return &OpenAI{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func buildPrompt(topic, difficulty string, count int) string {
	return fmt.Sprintf(`Generate %d multiple-choice quiz questions about "%s".
Difficulty level: %s.
Each question should have 4 options.

Return a JSON array with this exact format:
[
  {
    "question": "The question text here",
    "options": ["Option A text", "Option B text", "Option C text", "Option D text"],
    "correctIndex": 0
  }
]

The correctIndex should be 0, 1, 2, or 3 corresponding to the correct option.
Make the questions engaging and the options challenging.`, count, topic, difficulty)
}

func (o *OpenAI) Generate(ctx context.Context, topic, difficulty string, count int) ([]models.GeneratedQuestion, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(topic, difficulty, count)},
		},
		Temperature: 0.7,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &GenerationError{Reason: "malformed API response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &GenerationError{Reason: fmt.Sprintf("API error (%d): %s", resp.StatusCode, msg)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &GenerationError{Reason: "no choices in response"}
	}

	return ParseQuestions(parsed.Choices[0].Message.Content, count)
}

// ParseQuestions extracts and validates the question array from model output
func ParseQuestions(content string, count int) ([]models.GeneratedQuestion, error) {
	match := jsonArray.FindString(content)
	if match == "" {
		return nil, &GenerationError{Reason: "no JSON array in response"}
	}

	var qs []models.GeneratedQuestion
	if err := json.Unmarshal([]byte(match), &qs); err != nil {
		return nil, &GenerationError{Reason: "invalid question JSON", Err: err}
	}
	if err := Validate(qs, count); err != nil {
		return nil, err
	}
	return qs, nil
}
