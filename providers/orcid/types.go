package orcid

import "strings"

// Value is ORCID's ubiquitous {"value": "..."} wrapper.
type Value struct {
	Value string `json:"value"`
}

// Record is the subset of the /{orcid}/record response we read.
type Record struct {
	OrcidIdentifier struct {
		Path string `json:"path"`
	} `json:"orcid-identifier"`
	Person            *Person     `json:"person"`
	ActivitiesSummary *Activities `json:"activities-summary"`
}

// Profile is what the update check needs from a record.
type Profile struct {
	Name  string
	Works []Work
}

// Person carries the researcher's name.
type Person struct {
	Name *struct {
		GivenNames *Value `json:"given-names"`
		FamilyName *Value `json:"family-name"`
		CreditName *Value `json:"credit-name"`
	} `json:"name"`
}

// Activities holds the grouped works of a record.
type Activities struct {
	Works *struct {
		Group []WorkGroup `json:"group"`
	} `json:"works"`
}

// WorkGroup bundles the summaries ORCID considers the same work.
type WorkGroup struct {
	WorkSummary []Work `json:"work-summary"`
}

// Work is a single work summary.
type Work struct {
	PutCode         int64            `json:"put-code"`
	Type            string           `json:"type,omitempty"`
	Title           *WorkTitle       `json:"title"`
	JournalTitle    *Value           `json:"journal-title,omitempty"`
	ExternalIDs     *ExternalIDs     `json:"external-ids"`
	PublicationDate *PublicationDate `json:"publication-date,omitempty"`
	URL             *Value           `json:"url,omitempty"`
}

// WorkTitle is the nested title object of a work.
type WorkTitle struct {
	Title    *Value `json:"title"`
	Subtitle *Value `json:"subtitle,omitempty"`
}

// ExternalIDs wraps the external identifier list.
type ExternalIDs struct {
	ExternalID []ExternalID `json:"external-id"`
}

// ExternalID is a typed identifier such as a DOI or PMID.
type ExternalID struct {
	Type         string `json:"external-id-type"`
	Value        string `json:"external-id-value"`
	Relationship string `json:"external-id-relationship,omitempty"`
}

// PublicationDate is ORCID's partial date.
type PublicationDate struct {
	Year  *Value `json:"year"`
	Month *Value `json:"month,omitempty"`
	Day   *Value `json:"day,omitempty"`
}

// DOI returns the raw value of the first external id of type doi.
func (w Work) DOI() string {
	if w.ExternalIDs == nil {
		return ""
	}
	for _, id := range w.ExternalIDs.ExternalID {
		if strings.EqualFold(id.Type, "doi") {
			return id.Value
		}
	}
	return ""
}

// TitleText returns the raw title value.
func (w Work) TitleText() string {
	if w.Title == nil || w.Title.Title == nil {
		return ""
	}
	return w.Title.Title.Value
}

// Works flattens all work summaries of the record.
func (r *Record) Works() []Work {
	if r == nil || r.ActivitiesSummary == nil || r.ActivitiesSummary.Works == nil {
		return nil
	}
	var works []Work
	for _, g := range r.ActivitiesSummary.Works.Group {
		works = append(works, g.WorkSummary...)
	}
	return works
}

// DisplayName prefers the credit name, else given + family names.
func (r *Record) DisplayName() string {
	if r == nil || r.Person == nil || r.Person.Name == nil {
		return ""
	}
	n := r.Person.Name
	if n.CreditName != nil && strings.TrimSpace(n.CreditName.Value) != "" {
		return strings.TrimSpace(n.CreditName.Value)
	}
	var parts []string
	if n.GivenNames != nil && n.GivenNames.Value != "" {
		parts = append(parts, strings.TrimSpace(n.GivenNames.Value))
	}
	if n.FamilyName != nil && n.FamilyName.Value != "" {
		parts = append(parts, strings.TrimSpace(n.FamilyName.Value))
	}
	return strings.Join(parts, " ")
}

// SearchResult is the expanded-search response.
type SearchResult struct {
	Results  []SearchItem `json:"expanded-result"`
	NumFound int          `json:"num-found"`
}

// SearchItem is one researcher hit of the expanded search.
type SearchItem struct {
	OrcidID         string   `json:"orcid-id"`
	GivenNames      string   `json:"given-names"`
	FamilyNames     string   `json:"family-names"`
	CreditName      string   `json:"credit-name"`
	OtherName       []string `json:"other-name"`
	InstitutionName []string `json:"institution-name"`
}
