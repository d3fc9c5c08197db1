// Package ai asks an OpenAI-compatible chat model to comment on detection digests.
package ai

import (
	"context"
	"errors"
	"fmt"

	"FlowGuard/internal/config"
	"FlowGuard/internal/model"

	"github.com/sashabaranov/go-openai"
)

// DigestAnalyzer implements model.Analyzer using the chat completions API.
type DigestAnalyzer struct {
	model  string
	client *openai.Client
}

var _ model.Analyzer = (*DigestAnalyzer)(nil)

// NewDigestAnalyzer creates an analyzer. BaseURL overrides the public endpoint, so any
// OpenAI-compatible server can be used.
func NewDigestAnalyzer(cfg config.AIConfig) (*DigestAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is not configured")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &DigestAnalyzer{
		model:  cfg.Model,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// AnalyzeTraffic returns the model's markdown analysis of a detection digest.
func (a *DigestAnalyzer) AnalyzeTraffic(ctx context.Context, input string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt(input)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("AI request timeout: %w", err)
		}
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("AI request canceled: %w", err)
		}
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

const systemPrompt = "You are a senior network security analyst reviewing the output of a " +
	"flow-based intrusion detection system. Answer in markdown."

func prompt(input string) string {
	return "The FlowGuard IDS raised the following digest during its last check. Assess the likely " +
		"threat, how severe it is, and what an operator should investigate first. Be concise.\n\n" +
		"--- Digest ---\n" + input + "\n--- End of Digest ---"
}
