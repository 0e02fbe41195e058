package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/statement-agent/internal/llm"
)

const systemPrompt = "You write Go programs. Respond with a JSON object that matches the JSON Schema below. " +
	"Put the complete Go source file in \"code\" exactly as you would otherwise return it, " +
	"and optionally a one-line summary of your approach in \"notes\"."

// GenerateCode implements llm.CodeGenerator using chat/completions in JSON mode.
func (c *Client) GenerateCode(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	c.logger.Info("llm.generate.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildCodeResponseSchema())},
			{"role": "user", "content": prompt},
		},
	}
	if c.cfg.MaxTokens > 0 {
		body["max_completion_tokens"] = c.cfg.MaxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.generate.http_error",
			"status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.NewGenerationError(ProviderName, status, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.generate.decode_error",
			"error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.NewGenerationError(ProviderName, status, fmt.Errorf("decode openai response: %w", err))
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.generate.no_choices", "elapsed_ms", time.Since(start).Milliseconds())
		return "", llm.NewGenerationError(ProviderName, status, errors.New("no choices in openai response"))
	}
	choice := cc.Choices[0]
	if choice.Message.Refusal != "" {
		return "", llm.NewGenerationError(ProviderName, status, fmt.Errorf("model refused: %s", choice.Message.Refusal))
	}

	code, fallback, err := llm.DecodeCodeResponse(choice.Message.Content, c.cfg.LenientResponse)
	if err != nil {
		c.logger.Error("llm.generate.invalid_response",
			"error", err, "finish_reason", choice.FinishReason,
			"content_len", len(choice.Message.Content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.NewGenerationError(ProviderName, status, err)
	}
	if fallback != "" {
		c.logger.Warn("llm.generate.lenient_applied", "fallback", fallback)
	}

	c.logger.Info("llm.generate.ok",
		"code_bytes", len(code),
		"finish_reason", choice.FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return code, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
