package llm

// BuildCodeResponseSchema returns the JSON-Schema for CodeResponse.
// We describe it to the model and also use it locally to validate.
func BuildCodeResponseSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"code":  map[string]any{"type": "string", "minLength": 1, "pattern": `package\s+main`},
			"notes": map[string]any{"type": "string"},
		},
		"required": []string{"code"},
	}
}
