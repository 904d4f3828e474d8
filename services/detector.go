package services

import (
	"orquidea/models"
	"orquidea/providers/orcid"
)

// DetectNew returns the fresh works whose identity matches no existing
// publication, in fresh order. Works without identity are ignored and a
// repeated identity is reported once.
func DetectNew(fresh []orcid.Work, existing []models.Publication) []orcid.Work {
	known := make(map[string]struct{}, len(existing)+len(fresh))
	for _, p := range existing {
		if id := PublicationIdentity(p); id != "" {
			known[id] = struct{}{}
		}
	}

	var out []orcid.Work
	for _, w := range fresh {
		id := WorkIdentity(w)
		if id == "" {
			continue
		}
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		out = append(out, w)
	}
	return out
}
