package llm

// BuildRecordsJSONSchema returns the JSON Schema the cleaned engine output must
// satisfy: an array of ten-field provider records.
func BuildRecordsJSONSchema() map[string]any {
	text := map[string]any{"type": "string"}
	record := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"id":             text,
			"governorate":    text,
			"area":           text,
			"provider_type":  text,
			"main_specialty": text,
			"sub_specialty":  text,
			"name":           text,
			"address":        text,
			"hotline":        map[string]any{"type": []any{"string", "null"}},
			"phones": map[string]any{
				"type":  "array",
				"items": text,
			},
		},
	}
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "array",
		"items":   record,
	}
}
