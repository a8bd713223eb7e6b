package domain

// Partner is a customer or company paying through the service
type Partner struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Street              string `json:"street"`
	Zip                 string `json:"zip"`
	City                string `json:"city"`
	Phone               string `json:"phone"`
	Language            string `json:"lang"`
	Country             string `json:"country"`
	ID                  int64  `json:"id"`
	CommercialPartnerID int64  `json:"commercial_partner_id"`
}

// CommercialEntity returns the id of the company the partner belongs to, or its own id
func (p *Partner) CommercialEntity() int64 {
	if p.CommercialPartnerID != 0 {
		return p.CommercialPartnerID
	}
	return p.ID
}

// Snapshot copies the partner identity for storage on a transaction
func (p *Partner) Snapshot() PartnerSnapshot {
	return PartnerSnapshot{
		Name:     p.Name,
		Email:    p.Email,
		Address:  p.Street,
		Zip:      p.Zip,
		City:     p.City,
		Phone:    p.Phone,
		Language: p.Language,
		Country:  p.Country,
	}
}
