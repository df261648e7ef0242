package entity

import "strings"

// Record is one extracted provider entry. The JSON names are the result file format.
type Record struct {
	ID            string   `json:"id"`
	Governorate   string   `json:"governorate"`
	Area          string   `json:"area"`
	ProviderType  string   `json:"provider_type"`
	MainSpecialty string   `json:"main_specialty"`
	SubSpecialty  string   `json:"sub_specialty"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Hotline       *string  `json:"hotline"`
	Phones        []string `json:"phones"`
}

// RecordFields lists the result keys in output order.
var RecordFields = []string{
	"id", "governorate", "area", "provider_type", "main_specialty",
	"sub_specialty", "name", "address", "hotline", "phones",
}

func (r Record) dedupeKey() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return "id:" + strings.ToLower(id)
	}
	name := strings.ToLower(strings.Join(strings.Fields(r.Name), " "))
	addr := strings.ToLower(strings.Join(strings.Fields(r.Address), " "))
	if name == "" && addr == "" {
		return ""
	}
	return "na:" + name + "|" + addr
}

// DedupeRecords keeps the first occurrence of each id, or of name+address when
// the id is blank. Records with no usable key are kept as-is.
func DedupeRecords(in []Record) []Record {
	seen := make(map[string]struct{}, len(in))
	out := make([]Record, 0, len(in))
	for _, r := range in {
		k := r.dedupeKey()
		if k != "" {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
