package models

import "time"

// Opportunity is a SAM.gov contract notice normalized to the canonical
// schema. NoticeID is the primary identity; re-ingesting a record with the
// same NoticeID replaces every field and restamps LastUpdated.
type Opportunity struct {
	NoticeID    string `json:"notice_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Department  string `json:"department"`
	SubTier     string `json:"sub_tier"`
	Office      string `json:"office"`

	PostedDate   string `json:"posted_date"`
	ResponseDate string `json:"response_date"`
	ArchiveDate  string `json:"archive_date"`
	AwardDate    string `json:"award_date"`

	NoticeType  string `json:"notice_type"`
	BaseType    string `json:"base_type"`
	ArchiveType string `json:"archive_type"`

	AwardNumber string `json:"award_number"`
	AwardAmount string `json:"award_amount"`
	Awardee     string `json:"awardee"`

	PopCountryCode string `json:"pop_country_code"`
	PopCountryName string `json:"pop_country_name"`
	PopState       string `json:"pop_state"`
	PopCity        string `json:"pop_city"`

	// AfricanCountry is the mapped display name for PopCountryCode, or
	// "Other/Multiple" when the code is unknown or the record matched by
	// keyword only.
	AfricanCountry string `json:"african_country"`
	SamURL         string `json:"sam_url"`

	// IsActive is recomputed from ArchiveType at processing time, never
	// trusted from upstream.
	IsActive bool `json:"is_active"`

	DataCollectionDate time.Time `json:"data_collection_date"`
	LastUpdated        time.Time `json:"last_updated"`
}
