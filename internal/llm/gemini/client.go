package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/statement-agent/internal/llm"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateCode implements llm.CodeGenerator with models/<model>:generateContent.
func (c *Client) GenerateCode(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	c.logger.Info("llm.generate.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	genCfg := map[string]any{"temperature": c.cfg.Temperature}
	if c.cfg.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = c.cfg.MaxTokens
	}
	body := map[string]any{
		"contents":         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		"generationConfig": genCfg,
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	// key goes in a header so it never shows up in logged URLs
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.generate.http_error",
			"status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.NewGenerationError(ProviderName, status, err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("llm.generate.decode_error", "error", err, "raw_bytes", len(raw))
		return "", llm.NewGenerationError(ProviderName, status, fmt.Errorf("decode gemini response: %w", err))
	}
	if br := gr.PromptFeedback.BlockReason; br != "" {
		return "", llm.NewGenerationError(ProviderName, status, fmt.Errorf("prompt blocked: %s", br))
	}
	if len(gr.Candidates) == 0 {
		c.logger.Error("llm.generate.no_candidates", "elapsed_ms", time.Since(start).Milliseconds())
		return "", llm.NewGenerationError(ProviderName, status, errors.New("no candidates in gemini response"))
	}

	cand := gr.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	code := llm.ExtractCode(text.String())
	if code == "" {
		c.logger.Error("llm.generate.empty", "finish_reason", cand.FinishReason)
		return "", llm.NewGenerationError(ProviderName, status, fmt.Errorf("%w (finish reason %s)", llm.ErrEmptyCode, cand.FinishReason))
	}

	c.logger.Info("llm.generate.ok",
		"code_bytes", len(code),
		"finish_reason", cand.FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return code, nil
}
