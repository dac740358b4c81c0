package samapi

import (
	"bytes"
	"encoding/json"
)

// searchResponse matches the SAM.gov opportunities v2 search schema.
type searchResponse struct {
	TotalRecords      int              `json:"totalRecords"`
	Limit             int              `json:"limit"`
	Offset            int              `json:"offset"`
	OpportunitiesData []RawOpportunity `json:"opportunitiesData"`
}

// RawOpportunity is a single notice as returned by the search API.
// Shape is untrusted external input: every field defaults to its zero
// value when absent, and nested place-of-performance levels may be
// missing entirely.
type RawOpportunity struct {
	NoticeID     string `json:"noticeId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Department   string `json:"department"`
	SubTier      string `json:"subTier"`
	Office       string `json:"office"`
	PostedDate   string `json:"postedDate"`
	ResponseDate string `json:"responseDeadLine"`
	NoticeType   string `json:"type"`
	BaseType     string `json:"baseType"`
	ArchiveDate  string `json:"archiveDate"`
	ArchiveType  string `json:"archiveType"`

	AwardDate   string      `json:"awardDate"`
	AwardNumber LooseString `json:"awardNumber"`
	AwardAmount LooseString `json:"awardAmount"`
	Awardee     string      `json:"awardee"`

	PlaceOfPerformance PlaceOfPerformance `json:"placeOfPerformance"`
}

// PlaceOfPerformance nests country/state/city; any level may be null.
type PlaceOfPerformance struct {
	Country struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"country"`
	State struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"state"`
	City struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"city"`
}

// LooseString accepts a JSON string, number, or null. The upstream feed
// switches between "2500000" and 2500000 for award amounts depending on
// the notice type.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = LooseString(num.String())
	return nil
}

func (s LooseString) String() string { return string(s) }
