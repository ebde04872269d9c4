package transport

import "leadflow_backend/internal/leads/domain"

// ToLeadResponse maps a lead snapshot to its camelCase wire form.
func ToLeadResponse(lead domain.Lead) LeadResponse {
	lead = lead.Clone()
	return LeadResponse{
		ID:                lead.ID,
		Name:              lead.Name,
		Email:             lead.Email,
		Phone:             lead.Phone,
		Interest:          lead.Interest,
		Status:            string(lead.Status),
		Source:            lead.Source,
		CampaignID:        lead.CampaignID,
		AssignedTo:        lead.AssignedTo,
		Score:             lead.Score,
		Priority:          string(lead.Priority),
		Qualification:     lead.Qualification,
		Notes:             lead.Notes,
		Message:           lead.Message,
		LifeDetails:       lead.LifeDetails,
		RealEstateDetails: lead.RealEstateDetails,
		SecuritiesDetails: lead.SecuritiesDetails,
		CustomDetails:     lead.CustomDetails,
		PlatformData:      lead.PlatformData,
		IsArchived:        lead.IsArchived,
		StatusChangedAt:   lead.StatusChangedAt,
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}

// ToLeadResponses maps a list, never returning nil.
func ToLeadResponses(leads []domain.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}
