package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/network-extractor/constants"
)

var (
	textFields = []string{"id", "governorate", "area", "provider_type", "main_specialty", "sub_specialty", "name", "address"}

	keySynonyms = map[string]string{
		"code":            "id",
		"provider_id":     "id",
		"provider_code":   "id",
		"city":            "area",
		"district":        "area",
		"region":          "area",
		"type":            "provider_type",
		"providertype":    "provider_type",
		"category":        "provider_type",
		"specialty":       "main_specialty",
		"speciality":      "main_specialty",
		"main_speciality": "main_specialty",
		"sub_speciality":  "sub_specialty",
		"subspecialty":    "sub_specialty",
		"provider_name":   "name",
		"provider":        "name",
		"hot_line":        "hotline",
		"short_number":    "hotline",
		"phone":           "phones",
		"phone_numbers":   "phones",
		"telephone":       "phones",
		"telephones":      "phones",
		"mobile":          "phones",
	}

	keySepRe   = regexp.MustCompile(`[\s\-]+`)
	phoneSplit = regexp.MustCompile(`[,;/|\n]+`)
)

// canonicalKey maps an engine-chosen key onto a record field name.
func canonicalKey(k string) (string, bool) {
	k = keySepRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(k)), "_")
	if syn, ok := keySynonyms[k]; ok {
		return syn, true
	}
	switch k {
	case "id", "governorate", "area", "provider_type", "main_specialty", "sub_specialty",
		"name", "address", "hotline", "phones":
		return k, true
	}
	return "", false
}

// NormalizeRecord coerces one engine object into the ten-field record shape:
// synonyms are renamed, unknown keys dropped, numbers turned into strings,
// a phone string split into a list and a blank hotline made null.
// It returns the notes of what changed for logging.
func NormalizeRecord(in map[string]any) (map[string]any, []string) {
	out := make(map[string]any, 10)
	var notes []string

	for k, v := range in {
		key, ok := canonicalKey(k)
		if !ok {
			notes = append(notes, k+"(unknown)")
			continue
		}
		if key != k {
			if _, exists := in[key]; exists {
				notes = append(notes, k+"(shadowed)")
				continue
			}
			notes = append(notes, k+"->"+key)
		}
		out[key] = v
	}

	for _, f := range textFields {
		out[f] = coerceText(out[f])
	}

	if f, ok := constants.CanonicalProviderType(out["provider_type"].(string)); ok {
		out["provider_type"] = f
	}

	switch h := coerceText(out["hotline"]); h {
	case "", "null", "none", "n/a", "-":
		out["hotline"] = nil
	default:
		out["hotline"] = h
	}

	out["phones"] = coercePhones(out["phones"])
	return out, notes
}

func coerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := coerceText(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func coercePhones(v any) []any {
	phones := make([]any, 0, 2)
	add := func(s string) {
		for _, p := range phoneSplit.Split(s, -1) {
			if p = strings.TrimSpace(p); p != "" {
				phones = append(phones, p)
			}
		}
	}
	switch t := v.(type) {
	case nil:
	case []any:
		for _, e := range t {
			add(coerceText(e))
		}
	default:
		add(coerceText(t))
	}
	return phones
}
