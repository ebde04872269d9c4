package webhook

// TikTokPayload reads {"data":{"campaign_id":"...","details":{"name","email","phone"}}}.
type TikTokPayload struct {
	Name       string
	Email      string
	Phone      string
	CampaignID string
}

// NewTikTokPayload validates raw as an object and reads the data wrapper.
func NewTikTokPayload(raw []byte) (TikTokPayload, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return TikTokPayload{}, err
	}
	data := obj.obj("data")
	details := data.obj("details")
	return TikTokPayload{
		Name:       details.str("name"),
		Email:      details.str("email"),
		Phone:      details.str("phone"),
		CampaignID: data.str("campaign_id"),
	}, nil
}

// Lead applies the TikTok defaults. Interest is fixed for this channel.
func (p TikTokPayload) Lead() NormalizedLead {
	return NormalizedLead{
		Name:       firstNonEmpty(p.Name, "TikTok Lead"),
		Email:      firstNonEmpty(p.Email, DefaultEmail),
		Phone:      firstNonEmpty(p.Phone, DefaultPhone),
		Interest:   "Indexed Universal Life (IUL)",
		CampaignID: p.CampaignID,
	}
}

// TikTokNormalizer handles TikTok lead generation webhooks.
type TikTokNormalizer struct{}

// Normalize implements Normalizer.
func (TikTokNormalizer) Normalize(raw []byte) (NormalizedLead, error) {
	p, err := NewTikTokPayload(raw)
	if err != nil {
		return NormalizedLead{}, err
	}
	return p.Lead(), nil
}
