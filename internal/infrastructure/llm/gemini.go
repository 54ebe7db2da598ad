package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"MemeCurator/internal/config"
	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

// GeminiEvaluator judges memes with a multimodal Gemini model.
type GeminiEvaluator struct {
	client *genai.Client
	model  string
}

var _ ports.Evaluator = (*GeminiEvaluator)(nil)

// NewGeminiEvaluator creates a Gemini API client from configuration.
func NewGeminiEvaluator(ctx context.Context, cfg config.EvaluatorConfig) (*GeminiEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key", domain.ErrMissingConfig)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiEvaluator{client: client, model: model}, nil
}

// Evaluate sends the image and title with a structured-output schema.
func (g *GeminiEvaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	mimeType := req.Content.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Content.Data, mimeType),
			genai.NewPartFromText(userPrompt(req.Title)),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction(req.Avoid), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    verdictSchema(),
	})
	if err != nil {
		return domain.Verdict{}, domain.NewAdapterError("gemini evaluate", classifyGenAIError(err), err)
	}

	return ParseVerdict(resp.Text())
}

func verdictSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"isAppropriate":    {Type: genai.TypeBoolean},
			"humorScore":       {Type: genai.TypeNumber, Description: "Score from 1 to 10"},
			"refusalReason":    {Type: genai.TypeString, Description: "Why it was rejected (optional)"},
			"explanation":      {Type: genai.TypeString, Description: "Brief analysis of the meme"},
			"politicalLeaning": {Type: genai.TypeString, Enum: leanings},
		},
		Required: []string{"isAppropriate", "humorScore", "explanation"},
	}
}

func classifyGenAIError(err error) domain.ErrorKind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return domain.KindQuota
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.KindConfig
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429"):
		return domain.KindQuota
	case strings.Contains(msg, "PERMISSION_DENIED") || strings.Contains(msg, "API_KEY_INVALID"):
		return domain.KindConfig
	default:
		return domain.KindTransport
	}
}
