package services

import (
	"strings"

	"orquidea/models"
	"orquidea/providers/orcid"
)

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI trims, lower-cases and strips resolver prefixes. DOIs are
// case-insensitive, so this is the only form ever stored or compared.
func NormalizeDOI(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	return s
}

// NormalizeTitle trims surrounding whitespace.
func NormalizeTitle(raw string) string {
	return strings.TrimSpace(raw)
}

// Identity returns the DOI if present, else the title, else "".
func Identity(doi, title string) string {
	if d := NormalizeDOI(doi); d != "" {
		return d
	}
	return NormalizeTitle(title)
}

// PublicationIdentity is the identity of a stored publication row.
func PublicationIdentity(p models.Publication) string {
	var doi string
	if p.DOI != nil {
		doi = *p.DOI
	}
	return Identity(doi, p.Title)
}

// WorkIdentity is the identity of a fresh ORCID work summary.
func WorkIdentity(w orcid.Work) string {
	return Identity(w.DOI(), w.TitleText())
}

// PublicationFields returns the normalized column values to store for w.
func PublicationFields(w orcid.Work) (*string, string) {
	title := NormalizeTitle(w.TitleText())
	if doi := NormalizeDOI(w.DOI()); doi != "" {
		return &doi, title
	}
	return nil, title
}

// WorkLabel is the human readable name of a work in notifications.
func WorkLabel(w orcid.Work) string {
	if t := NormalizeTitle(w.TitleText()); t != "" {
		return t
	}
	return NormalizeDOI(w.DOI())
}
