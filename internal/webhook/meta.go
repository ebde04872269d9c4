package webhook

// MetaPayload is a Meta lead-ads change value. Deliveries arrive either as the
// full envelope {"entry":[{"changes":[{"value":{...}}]}]} or as the value itself.
// Only the first entry and first change are read.
type MetaPayload struct {
	Fields     map[string]string
	Flat       map[string]string
	CampaignID string
}

// NewMetaPayload validates raw as an object and unwraps the change value.
func NewMetaPayload(raw []byte) (MetaPayload, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return MetaPayload{}, err
	}

	value := obj
	if entries := obj.arr("entry"); len(entries) > 0 {
		if changes := asObject(entries[0]).arr("changes"); len(changes) > 0 {
			if v := asObject(changes[0]).obj("value"); v != nil {
				value = v
			}
		}
	}

	fields := make(map[string]string)
	for _, item := range value.arr("field_data") {
		field := asObject(item)
		name := field.str("name")
		values := field.arr("values")
		if name == "" || len(values) == 0 {
			continue
		}
		fields[name] = scalarString(values[0])
	}

	return MetaPayload{
		Fields: fields,
		Flat: map[string]string{
			"full_name":    value.str("full_name"),
			"email":        value.str("email"),
			"phone_number": value.str("phone_number"),
		},
		CampaignID: value.str("campaign_id"),
	}, nil
}

// Lead applies the Meta defaults. field_data wins over flat members.
func (p MetaPayload) Lead() NormalizedLead {
	return NormalizedLead{
		Name:       firstNonEmpty(p.Fields["full_name"], p.Flat["full_name"], "Meta Lead"),
		Email:      firstNonEmpty(p.Fields["email"], p.Flat["email"], DefaultEmail),
		Phone:      firstNonEmpty(p.Fields["phone_number"], p.Flat["phone_number"], DefaultPhone),
		Interest:   firstNonEmpty(p.Fields["job_title"], "Business Insurance"),
		CampaignID: p.CampaignID,
	}
}

// MetaNormalizer handles Meta (Facebook/Instagram) lead ads webhooks.
type MetaNormalizer struct{}

// Normalize implements Normalizer.
func (MetaNormalizer) Normalize(raw []byte) (NormalizedLead, error) {
	p, err := NewMetaPayload(raw)
	if err != nil {
		return NormalizedLead{}, err
	}
	return p.Lead(), nil
}
