package providers

import (
	"context"

	"orquidea/providers/orcid"
)

// RecordSource is the read-only system of record for a researcher's works.
type RecordSource interface {
	// FetchProfile returns the researcher's current name and complete work list.
	FetchProfile(ctx context.Context, orcidID string) (*orcid.Profile, error)

	// Name returns the unique provider name (e.g. "orcid").
	Name() string
}
