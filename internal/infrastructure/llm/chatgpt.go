package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MemeCurator/internal/config"
	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

// ChatGPTEvaluator implements ports.Evaluator backed by OpenAI-compatible vision APIs.
type ChatGPTEvaluator struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Evaluator = (*ChatGPTEvaluator)(nil)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewChatGPTEvaluator builds a client from configuration.
func NewChatGPTEvaluator(cfg config.EvaluatorConfig) *ChatGPTEvaluator {
	return &ChatGPTEvaluator{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 45 * time.Second,
		},
	}
}

// Evaluate posts the image as a data URL and asks for a JSON verdict.
func (c *ChatGPTEvaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	if c == nil {
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", domain.KindConfig, fmt.Errorf("chatgpt client is nil"))
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", domain.KindConfig, fmt.Errorf("chatgpt client misconfigured"))
	}

	mimeType := req.Content.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Content.Data)

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemInstruction(req.Avoid)},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": userPrompt(req.Title)},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			}},
		},
	})
	if err != nil {
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", domain.KindMalformed, fmt.Errorf("marshal chatgpt payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", domain.KindConfig, fmt.Errorf("new request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", domain.KindTransport, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", classifyStatus(resp.StatusCode),
			fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", domain.KindMalformed, fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return domain.Verdict{}, domain.NewAdapterError("chatgpt evaluate", domain.KindMalformed, fmt.Errorf("no choices in response"))
	}

	return ParseVerdict(decoded.Choices[0].Message.Content)
}
