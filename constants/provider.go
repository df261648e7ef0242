package constants

import "strings"

// ProviderType is the canonical label for a network provider record.
type ProviderType string

const (
	Hospital      ProviderType = "Hospital"
	Clinic        ProviderType = "Clinic"
	Pharmacy      ProviderType = "Pharmacy"
	Laboratory    ProviderType = "Laboratory"
	Radiology     ProviderType = "Radiology"
	Optical       ProviderType = "Optical"
	Dental        ProviderType = "Dental"
	Physiotherapy ProviderType = "Physiotherapy"
)

var allProviderTypes = []ProviderType{
	Hospital,
	Clinic,
	Pharmacy,
	Laboratory,
	Radiology,
	Optical,
	Dental,
	Physiotherapy,
}

// ProviderTypes returns the canonical labels, used in the extraction prompt.
func ProviderTypes() []string {
	result := make([]string, len(allProviderTypes))
	for i, p := range allProviderTypes {
		result[i] = string(p)
	}
	return result
}

// CanonicalProviderType maps common spellings onto a canonical label.
// Unknown values are returned trimmed with ok=false.
func CanonicalProviderType(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	normalized := strings.ToLower(trimmed)

	synonyms := map[string]ProviderType{
		"hospitals":        Hospital,
		"clinics":          Clinic,
		"polyclinic":       Clinic,
		"medical center":   Clinic,
		"pharmacies":       Pharmacy,
		"lab":              Laboratory,
		"labs":             Laboratory,
		"laboratories":     Laboratory,
		"scan center":      Radiology,
		"x-ray":            Radiology,
		"optics":           Optical,
		"dentist":          Dental,
		"physical therapy": Physiotherapy,
		"مستشفى":           Hospital,
		"عيادة":            Clinic,
		"صيدلية":           Pharmacy,
		"معمل":             Laboratory,
		"مركز أشعة":        Radiology,
	}
	if p, ok := synonyms[normalized]; ok {
		return string(p), true
	}
	for _, p := range allProviderTypes {
		if normalized == strings.ToLower(string(p)) {
			return string(p), true
		}
	}
	return trimmed, false
}
