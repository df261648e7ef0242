package llm

import (
	"strings"

	"github.com/joseph-ayodele/network-extractor/constants"
)

// BuildInstruction composes the extraction instruction shared by both paths:
// the ten record fields, the provider type vocabulary and output hygiene rules.
func BuildInstruction(providerTypes []string) string {
	if len(providerTypes) == 0 {
		providerTypes = constants.ProviderTypes()
	}
	parts := []string{
		"You extract medical network provider entries from the supplied content.",
		"Return ONLY a JSON array. Each element is an object with exactly these keys:",
		`"id" (unique identifier as printed, string),`,
		`"governorate" (string),`,
		`"area" (district or city, string),`,
		`"provider_type" (one of: ` + strings.Join(providerTypes, ", ") + `; otherwise the label as printed),`,
		`"main_specialty" (string),`,
		`"sub_specialty" (string),`,
		`"name" (provider name, string),`,
		`"address" (string),`,
		`"hotline" (short hotline number as a string, or null when absent),`,
		`"phones" (array of phone number strings, empty array when none).`,
		"Keep the original language of names and addresses. Do not translate.",
		"Use an empty string for unknown text fields. Never invent values.",
		"One object per provider row or listing. Do not merge distinct providers.",
		"Do not wrap the array in an object and do not add commentary.",
	}
	return strings.Join(parts, "\n")
}

// BuildTabularText wraps a rendered row window with its position.
func BuildTabularText(table, label string) string {
	var b strings.Builder
	if label != "" {
		b.WriteString("Rows (")
		b.WriteString(label)
		b.WriteString("):\n")
	}
	b.WriteString(table)
	return b.String()
}
