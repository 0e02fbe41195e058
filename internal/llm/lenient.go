package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeCodeResponse turns a provider's message content into Go source.
// Strict mode requires a document matching BuildCodeResponseSchema. Lenient mode also
// accepts a JSON object with a string "code" plus unknown keys, or plain (possibly fenced)
// source. fallback names the path taken when strict validation failed.
func DecodeCodeResponse(content string, lenient bool) (code string, fallback string, err error) {
	raw := []byte(strings.TrimSpace(content))

	vErr := codeResponseValidator.Validate(raw)
	if vErr == nil {
		var resp CodeResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", "", fmt.Errorf("unmarshal code response: %w", err)
		}
		if code = ExtractCode(resp.Code); code == "" {
			return "", "", ErrEmptyCode
		}
		return code, "", nil
	}
	if !lenient {
		return "", "", fmt.Errorf("schema validation failed: %w", vErr)
	}

	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err == nil {
		if s, ok := loose["code"].(string); ok {
			if code = ExtractCode(s); code != "" {
				return code, "json_code_field", nil
			}
		}
		return "", "", fmt.Errorf("schema validation failed: %w", vErr)
	}

	if code = ExtractCode(content); strings.Contains(code, "package ") {
		return code, "raw_source", nil
	}
	return "", "", ErrEmptyCode
}
