package generator

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIClient generates answers through Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a Gemini-backed generator client.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generator API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIClient{client: client, model: model}, nil
}

// Generate implements Client. The policy and verified context travel as the
// system instruction; history and the question travel as conversation
// contents.
func (c *GenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	system := req.Policy
	if req.Context != "" {
		system += "\n\n" + req.Context
	}

	contents := make([]*genai.Content, 0, len(req.History)+2)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	question := req.Question
	if req.Corrective != "" {
		question = req.Corrective + "\n\n" + req.Question
	}
	contents = append(contents, genai.NewContentFromText(question, genai.RoleUser))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("generator returned empty response")
	}
	return text, nil
}
