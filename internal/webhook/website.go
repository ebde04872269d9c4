package webhook

// WebsitePayload is the flat body relayed by the public site's contact form:
// {"name","email","phone","interest","campaign_id"}.
type WebsitePayload struct {
	Name       string
	Email      string
	Phone      string
	Interest   string
	CampaignID string
}

// NewWebsitePayload validates raw as an object and reads the flat members.
func NewWebsitePayload(raw []byte) (WebsitePayload, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return WebsitePayload{}, err
	}
	return WebsitePayload{
		Name:       obj.str("name"),
		Email:      obj.str("email"),
		Phone:      obj.str("phone"),
		Interest:   obj.str("interest"),
		CampaignID: obj.str("campaign_id"),
	}, nil
}

// Lead applies the website defaults.
func (p WebsitePayload) Lead() NormalizedLead {
	return NormalizedLead{
		Name:       firstNonEmpty(p.Name, "Website Lead"),
		Email:      firstNonEmpty(p.Email, DefaultEmail),
		Phone:      firstNonEmpty(p.Phone, DefaultPhone),
		Interest:   firstNonEmpty(p.Interest, "General Inquiry"),
		CampaignID: p.CampaignID,
	}
}

// WebsiteNormalizer handles contact-form relays from the marketing site.
type WebsiteNormalizer struct{}

// Normalize implements Normalizer.
func (WebsiteNormalizer) Normalize(raw []byte) (NormalizedLead, error) {
	p, err := NewWebsitePayload(raw)
	if err != nil {
		return NormalizedLead{}, err
	}
	return p.Lead(), nil
}
