package ingest

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/africaops/sam-monitor/internal/models"
	"github.com/africaops/sam-monitor/internal/samapi"
	"github.com/microcosm-cc/bluemonday"
)

// CountrySentinel is the african_country value for records that matched
// by keyword only or carry an unrecognized country code.
const CountrySentinel = "Other/Multiple"

// Normalizer maps raw notices into the canonical schema. Total over
// well-formed raw input: missing fields become empty strings, never an
// error.
type Normalizer struct {
	countryNames   map[string]string
	detailBaseURL  string
	descriptionMax int
	sanitize       *bluemonday.Policy
	now            func() time.Time
}

func NewNormalizer(countryNames map[string]string, detailBaseURL string, descriptionMax int) *Normalizer {
	if descriptionMax <= 0 {
		descriptionMax = 1000
	}
	return &Normalizer{
		countryNames:   countryNames,
		detailBaseURL:  detailBaseURL,
		descriptionMax: descriptionMax,
		sanitize:       bluemonday.StrictPolicy(),
		now:            time.Now,
	}
}

func (n *Normalizer) Normalize(raw samapi.RawOpportunity) models.Opportunity {
	now := n.now().UTC()
	pop := raw.PlaceOfPerformance

	opp := models.Opportunity{
		NoticeID:    strings.TrimSpace(raw.NoticeID),
		Title:       cleanText(raw.Title),
		Description: n.description(raw.Description),
		Department:  cleanText(raw.Department),
		SubTier:     cleanText(raw.SubTier),
		Office:      cleanText(raw.Office),

		PostedDate:   canonicalDate(raw.PostedDate),
		ResponseDate: canonicalDate(raw.ResponseDate),
		ArchiveDate:  canonicalDate(raw.ArchiveDate),
		AwardDate:    canonicalDate(raw.AwardDate),

		NoticeType:  cleanText(raw.NoticeType),
		BaseType:    cleanText(raw.BaseType),
		ArchiveType: cleanText(raw.ArchiveType),

		AwardNumber: cleanText(raw.AwardNumber.String()),
		AwardAmount: cleanText(raw.AwardAmount.String()),
		Awardee:     cleanText(raw.Awardee),

		PopCountryCode: strings.ToUpper(strings.TrimSpace(pop.Country.Code)),
		PopCountryName: cleanText(pop.Country.Name),
		PopState:       cleanText(pop.State.Name),
		PopCity:        cleanText(pop.City.Name),

		DataCollectionDate: now,
		LastUpdated:        now,
	}

	if name, ok := n.countryNames[opp.PopCountryCode]; ok {
		opp.AfricanCountry = name
	} else {
		opp.AfricanCountry = CountrySentinel
	}

	if opp.NoticeID != "" {
		opp.SamURL = n.detailBaseURL + opp.NoticeID
	}

	// Derived, never copied from upstream. The literal "nan" marker is
	// what the previous collector wrote for absent archive types.
	opp.IsActive = opp.ArchiveType == "" || strings.EqualFold(opp.ArchiveType, "nan")

	return opp
}

// description strips any markup the upstream slipped into the free text
// and truncates to the configured cap.
func (n *Normalizer) description(raw string) string {
	text := cleanText(html.UnescapeString(n.sanitize.Sanitize(raw)))
	return TruncateText(text, n.descriptionMax)
}

// TruncateText cuts a string to max byte length, appending ellipsis if
// truncated. The cut backs up to a rune boundary so a multi-byte
// character is never split.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	suffix := ""
	if maxLen > 3 {
		cut = maxLen - 3
		suffix = "..."
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}

// cleanText collapses whitespace and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
