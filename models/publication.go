package models

import "time"

// Publication is identified by its DOI when present, else by its title among
// the rows without DOI. Both scopes are enforced by unique indexes.
type Publication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	DOI       *string   `json:"doi,omitempty" gorm:"column:doi;size:512;uniqueIndex:idx_publications_doi"`
	Title     string    `json:"title" gorm:"type:text;not null;default:'';uniqueIndex:idx_publications_title_no_doi,where:doi IS NULL"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the explicit table name.
func (Publication) TableName() string {
	return "publications"
}
