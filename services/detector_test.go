package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orquidea/models"
	"orquidea/providers/orcid"
)

func identities(works []orcid.Work) []string {
	out := make([]string, 0, len(works))
	for _, w := range works {
		out = append(out, WorkIdentity(w))
	}
	return out
}

func TestDetectNewByDOIAndTitle(t *testing.T) {
	existing := []models.Publication{{ID: 1, DOI: strPtr("10.1/a")}}
	fresh := []orcid.Work{work("10.1/a", "A"), work("", "B")}

	got := DetectNew(fresh, existing)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].TitleText())
}

func TestDetectNewNothingNew(t *testing.T) {
	existing := []models.Publication{
		{ID: 1, DOI: strPtr("10.1/a"), Title: "A"},
		{ID: 2, Title: "B"},
	}
	fresh := []orcid.Work{work("10.1/A ", "A"), work("", " B ")}

	assert.Empty(t, DetectNew(fresh, existing))
}

func TestDetectNewIgnoresWorksWithoutIdentity(t *testing.T) {
	fresh := []orcid.Work{{}, work("", "   "), work("10.9/z", "")}

	got := DetectNew(fresh, nil)
	assert.Equal(t, []string{"10.9/z"}, identities(got))
}

func TestDetectNewKeepsOrderAndDeduplicates(t *testing.T) {
	fresh := []orcid.Work{
		work("", "C"),
		work("10.1/b", "B"),
		work("", "C"),
		work("10.1/B", "B again"),
		work("", "A"),
	}

	got := DetectNew(fresh, nil)
	assert.Equal(t, []string{"C", "10.1/b", "A"}, identities(got))
	assert.Equal(t, "B", got[1].TitleText())
}

func TestDetectNewTitleMatchRequiresNoDOI(t *testing.T) {
	// a stored DOI-less row does not hide a fresh work that carries a DOI
	existing := []models.Publication{{ID: 1, Title: "Same"}}
	fresh := []orcid.Work{work("10.5/s", "Same")}

	assert.Len(t, DetectNew(fresh, existing), 1)
}
