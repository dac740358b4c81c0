package ingest

import (
	"time"

	"github.com/africaops/sam-monitor/internal/models"
)

// PlaceholderPrefix marks demo records that keep the dashboard usable
// before the first successful collection. Real counts exclude it.
const PlaceholderPrefix = "SAMPLE"

// PlaceholderOpportunities returns the three demo records seeded when a
// run yields nothing and the store holds no real data yet.
func PlaceholderOpportunities(now time.Time) []models.Opportunity {
	now = now.UTC()
	posted := now.AddDate(0, 0, -7).Format("2006-01-02")
	due := now.AddDate(0, 0, 30).Format("2006-01-02")

	base := models.Opportunity{
		PostedDate:         posted,
		ResponseDate:       due,
		NoticeType:         "Presolicitation",
		BaseType:           "Presolicitation",
		IsActive:           true,
		DataCollectionDate: now,
		LastUpdated:        now,
	}

	ghana := base
	ghana.NoticeID = "SAMPLE001"
	ghana.Title = "Infrastructure Development Support Services - West Africa"
	ghana.Description = "Sample opportunity: engineering and program management support for road and water infrastructure projects across West Africa, with primary performance in Accra, Ghana."
	ghana.Department = "DEPARTMENT OF STATE"
	ghana.SubTier = "Bureau of African Affairs"
	ghana.Office = "Regional Procurement Support Office"
	ghana.PopCountryCode = "GHA"
	ghana.PopCountryName = "Ghana"
	ghana.PopCity = "Accra"
	ghana.AfricanCountry = "Ghana"
	ghana.SamURL = "https://sam.gov/opp/SAMPLE001"

	kenya := base
	kenya.NoticeID = "SAMPLE002"
	kenya.Title = "Healthcare Systems Strengthening Program - East Africa"
	kenya.Description = "Sample opportunity: technical assistance for public health laboratory networks and disease surveillance systems in East Africa, centered in Nairobi, Kenya."
	kenya.Department = "HEALTH AND HUMAN SERVICES, DEPARTMENT OF"
	kenya.SubTier = "Centers for Disease Control and Prevention"
	kenya.Office = "Office of Acquisition Services"
	kenya.NoticeType = "Sources Sought"
	kenya.BaseType = "Sources Sought"
	kenya.PopCountryCode = "KEN"
	kenya.PopCountryName = "Kenya"
	kenya.PopCity = "Nairobi"
	kenya.AfricanCountry = "Kenya"
	kenya.SamURL = "https://sam.gov/opp/SAMPLE002"

	za := base
	za.NoticeID = "SAMPLE003"
	za.Title = "Agricultural Development and Food Security Initiative"
	za.Description = "Sample opportunity: supply chain and extension services supporting smallholder agricultural productivity programs, performed in Cape Town, South Africa."
	za.Department = "AGRICULTURE, DEPARTMENT OF"
	za.SubTier = "Foreign Agricultural Service"
	za.Office = "International Programs Procurement Division"
	za.NoticeType = "Combined Synopsis/Solicitation"
	za.BaseType = "Combined Synopsis/Solicitation"
	za.PopCountryCode = "ZAF"
	za.PopCountryName = "South Africa"
	za.PopCity = "Cape Town"
	za.AfricanCountry = "South Africa"
	za.SamURL = "https://sam.gov/opp/SAMPLE003"

	return []models.Opportunity{ghana, kenya, za}
}
