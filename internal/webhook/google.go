package webhook

import (
	"strings"
)

// Google Ads lead form columns read by GoogleNormalizer.
const (
	googleFullName        = "FULL_NAME"
	googleFirstName       = "FIRST_NAME"
	googleLastName        = "LAST_NAME"
	googleEmail           = "EMAIL"
	googlePhone           = "PHONE_NUMBER"
	googleProductInterest = "PRODUCT_INTEREST"
)

// GooglePayload is the subset of a Google Ads lead form delivery we read:
// {"user_column_data":[{"column_id":"EMAIL","string_value":"..."}], "campaign_id": 123}
type GooglePayload struct {
	Columns    map[string]string
	CampaignID string
}

// NewGooglePayload validates raw as an object and reads its columns.
// Later duplicates of a column id win.
func NewGooglePayload(raw []byte) (GooglePayload, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return GooglePayload{}, err
	}

	columns := make(map[string]string)
	for _, item := range obj.arr("user_column_data") {
		col := asObject(item)
		id := col.str("column_id")
		if id == "" {
			continue
		}
		columns[id] = col.str("string_value")
	}

	return GooglePayload{Columns: columns, CampaignID: obj.str("campaign_id")}, nil
}

// Lead applies the Google defaults.
func (p GooglePayload) Lead() NormalizedLead {
	name := p.Columns[googleFullName]
	if name == "" {
		name = strings.TrimSpace(p.Columns[googleFirstName] + " " + p.Columns[googleLastName])
	}
	return NormalizedLead{
		Name:       firstNonEmpty(name, "Google Lead"),
		Email:      firstNonEmpty(p.Columns[googleEmail], DefaultEmail),
		Phone:      firstNonEmpty(p.Columns[googlePhone], DefaultPhone),
		Interest:   firstNonEmpty(p.Columns[googleProductInterest], "Life Insurance"),
		CampaignID: p.CampaignID,
	}
}

// GoogleNormalizer handles Google Ads lead form webhooks.
type GoogleNormalizer struct{}

// Normalize implements Normalizer.
func (GoogleNormalizer) Normalize(raw []byte) (NormalizedLead, error) {
	p, err := NewGooglePayload(raw)
	if err != nil {
		return NormalizedLead{}, err
	}
	return p.Lead(), nil
}
