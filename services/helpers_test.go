package services

import (
	"orquidea/providers/orcid"
)

func work(doi, title string) orcid.Work {
	w := orcid.Work{}
	if title != "" {
		w.Title = &orcid.WorkTitle{Title: &orcid.Value{Value: title}}
	}
	if doi != "" {
		w.ExternalIDs = &orcid.ExternalIDs{ExternalID: []orcid.ExternalID{
			{Type: "doi", Value: doi, Relationship: "self"},
		}}
	}
	return w
}

func strPtr(s string) *string { return &s }
