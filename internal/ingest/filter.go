package ingest

import (
	"strings"

	"github.com/africaops/sam-monitor/internal/samapi"
)

// RelevanceFilter decides whether a raw notice is in scope for Africa.
// A record is relevant if its place-of-performance country code is on the
// allow-list, or its title/description contains a region keyword or the
// display name of an allow-listed country (case-insensitive substring).
// Keyword coincidences are accepted false positives.
type RelevanceFilter struct {
	codes map[string]struct{}
	terms []string // lowercased keywords + country display names
}

func NewRelevanceFilter(codes []string, names map[string]string, keywords []string) *RelevanceFilter {
	f := &RelevanceFilter{
		codes: make(map[string]struct{}, len(codes)),
		terms: make([]string, 0, len(keywords)+len(names)),
	}
	for _, code := range codes {
		f.codes[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.terms = append(f.terms, kw)
		}
	}
	for _, name := range names {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			f.terms = append(f.terms, name)
		}
	}
	return f
}

// IsRelevant is pure and order-independent.
func (f *RelevanceFilter) IsRelevant(raw samapi.RawOpportunity) bool {
	code := strings.ToUpper(strings.TrimSpace(raw.PlaceOfPerformance.Country.Code))
	if _, ok := f.codes[code]; ok {
		return true
	}

	text := strings.ToLower(raw.Title) + "\n" + strings.ToLower(raw.Description)
	for _, term := range f.terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Filter returns the order-preserving relevant subset.
func (f *RelevanceFilter) Filter(raws []samapi.RawOpportunity) []samapi.RawOpportunity {
	var out []samapi.RawOpportunity
	for _, raw := range raws {
		if f.IsRelevant(raw) {
			out = append(out, raw)
		}
	}
	return out
}
