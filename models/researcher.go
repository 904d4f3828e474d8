package models

import "time"

// Researcher is a monitored ORCID record holder. Fingerprint stays nil until
// the first update check or the first monitoring request.
type Researcher struct {
	OrcidID     string    `json:"orcid_id" gorm:"column:orcid_id;primaryKey;size:32"`
	Name        string    `json:"name" gorm:"not null;default:''"`
	Fingerprint *string   `json:"fingerprint,omitempty" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the explicit table name.
func (Researcher) TableName() string {
	return "researchers"
}

// Authorship links a researcher to a publication. Rows are only ever added.
type Authorship struct {
	ResearcherOrcidID string    `json:"researcher_orcid_id" gorm:"column:researcher_orcid_id;primaryKey;size:32"`
	PublicationID     uint      `json:"publication_id" gorm:"primaryKey;index"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName returns the explicit table name.
func (Authorship) TableName() string {
	return "authorships"
}
