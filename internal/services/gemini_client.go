package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/utils"
)

// ChatTurn is one role-mapped history entry handed to the model.
// Role is "user" or "model".
type ChatTurn struct {
	Role    string
	Content string
}

type ChatCompletionRequest struct {
	SystemPrompt    string
	History         []ChatTurn
	UserMessage     string
	Temperature     float32
	MaxOutputTokens int32
}

type ChatCompletionResult struct {
	Text        string
	Model       string
	TotalTokens int32
}

// GeminiClient is the completion capability. Upstream failure is reported
// as an error; an empty reply comes back as an empty Text with no error.
type GeminiClient interface {
	CompleteChat(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResult, error)
	SummarizeTranscript(ctx context.Context, prompt string) (string, error)
}

type geminiClient struct {
	log    *logger.Logger
	client *genai.Client
	model  string
}

func NewGeminiClient(log *logger.Logger) (GeminiClient, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	model := utils.GetEnv("GEMINI_MODEL", "gemini-2.5-flash", log)
	timeoutSec := utils.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", 60, log)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &geminiClient{
		log:    log.With("service", "GeminiClient"),
		client: client,
		model:  model,
	}, nil
}

// chatContents maps the request history plus the new user message onto
// genai contents. Unknown history roles default to user.
func chatContents(req ChatCompletionRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return append(contents, genai.NewContentFromText(req.UserMessage, genai.RoleUser))
}

func (c *geminiClient) CompleteChat(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResult, error) {
	contents := chatContents(req)

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	result := &ChatCompletionResult{
		Text:  resp.Text(),
		Model: c.model,
	}
	if resp.UsageMetadata != nil {
		result.TotalTokens = resp.UsageMetadata.TotalTokenCount
	}
	return result, nil
}

func (c *geminiClient) SummarizeTranscript(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.3)),
		MaxOutputTokens: 400,
	})
	if err != nil {
		return "", fmt.Errorf("gemini summarize: %w", err)
	}
	return resp.Text(), nil
}
