package storage

import (
	"context"
	"errors"

	"orquidea/models"
)

// ErrNotFound is returned when a user, researcher or relationship does not exist.
var ErrNotFound = errors.New("not found")

// Repository is the persistence contract shared by the update pipeline and
// the HTTP API. Store implements it on PostgreSQL, Memory in process.
type Repository interface {
	ListMonitoredResearchers(ctx context.Context) ([]models.Researcher, error)
	GetResearcher(ctx context.Context, orcidID string) (*models.Researcher, error)
	ListExistingPublications(ctx context.Context, orcidID string) ([]models.Publication, error)
	UpsertResearcher(ctx context.Context, r *models.Researcher) error
	InsertPublicationIfAbsent(ctx context.Context, doi *string, title string) (uint, error)
	LinkAuthorshipIfAbsent(ctx context.Context, orcidID string, publicationID uint) error
	ListSubscribers(ctx context.Context, orcidID string) ([]models.Subscriber, error)

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	SyncUser(ctx context.Context, name, email string) (created bool, err error)
	AddMonitoring(ctx context.Context, userID uint, orcidID string) error
	RemoveMonitoring(ctx context.Context, userID uint, orcidID string) (removed bool, err error)
	IsMonitoring(ctx context.Context, email, orcidID string) (bool, error)
	ListMonitoredBy(ctx context.Context, email string) ([]models.Researcher, error)
	UpsertPushSubscription(ctx context.Context, userID uint, subscription []byte) (created bool, err error)
	DeletePushSubscription(ctx context.Context, userID uint) (deleted bool, err error)

	// InTx runs fn against a transaction-bound repository. The transaction
	// commits when fn returns nil and rolls back otherwise, panics included.
	InTx(ctx context.Context, fn func(Repository) error) error
}
