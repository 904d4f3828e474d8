package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"orquidea/models"
	"orquidea/notify"
	"orquidea/storage"
)

// PublicationInput is a publication as the UI knows it.
type PublicationInput struct {
	DOI   string `json:"doi"`
	Title string `json:"title"`
}

// AddMonitoringInput is the payload of a monitoring request.
type AddMonitoringInput struct {
	UserEmail      string
	ResearcherID   string
	ResearcherName string
	Publications   []PublicationInput
}

// MonitoringService backs the monitoring, user and push endpoints.
type MonitoringService struct {
	Repo   storage.Repository
	Logger *zap.Logger
}

// NewMonitoringService creates a MonitoringService.
func NewMonitoringService(repo storage.Repository, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{Repo: repo, Logger: logger}
}

// Add starts monitoring a researcher for a user and bootstraps the
// researcher's known publications, all in one transaction.
func (s *MonitoringService) Add(ctx context.Context, in AddMonitoringInput) error {
	email := strings.TrimSpace(in.UserEmail)
	orcidID := strings.TrimSpace(in.ResearcherID)
	name := strings.TrimSpace(in.ResearcherName)
	if email == "" || orcidID == "" || name == "" {
		return fmt.Errorf("%w: userEmail, researcher id and name are required", ErrInvalidInput)
	}

	ids := make([]string, 0, len(in.Publications))
	for _, p := range in.Publications {
		ids = append(ids, Identity(p.DOI, p.Title))
	}
	fingerprint := Fingerprint(ids)

	err := s.Repo.InTx(ctx, func(tx storage.Repository) error {
		user, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if err := tx.UpsertResearcher(ctx, &models.Researcher{OrcidID: orcidID, Name: name, Fingerprint: &fingerprint}); err != nil {
			return fmt.Errorf("upsert researcher: %w", err)
		}
		if err := tx.AddMonitoring(ctx, user.ID, orcidID); err != nil {
			return fmt.Errorf("add monitoring: %w", err)
		}

		for _, p := range in.Publications {
			if Identity(p.DOI, p.Title) == "" {
				continue
			}
			var doi *string
			if d := NormalizeDOI(p.DOI); d != "" {
				doi = &d
			}
			id, err := tx.InsertPublicationIfAbsent(ctx, doi, NormalizeTitle(p.Title))
			if err != nil {
				return fmt.Errorf("insert publication: %w", err)
			}
			if err := tx.LinkAuthorshipIfAbsent(ctx, orcidID, id); err != nil {
				return fmt.Errorf("link authorship: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.Info("Researcher added to monitoring",
		zap.String("email", email),
		zap.String("orcid", orcidID),
		zap.Int("publications", len(in.Publications)))
	return nil
}

// Remove deletes one monitoring relationship.
func (s *MonitoringService) Remove(ctx context.Context, email, orcidID string) error {
	if email == "" || orcidID == "" {
		return fmt.Errorf("%w: userEmail and orcid are required", ErrInvalidInput)
	}
	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	removed, err := s.Repo.RemoveMonitoring(ctx, user.ID, orcidID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("monitoring relationship: %w", storage.ErrNotFound)
	}
	return nil
}

// Status reports whether the user monitors the researcher.
func (s *MonitoringService) Status(ctx context.Context, email, orcidID string) (bool, error) {
	if email == "" || orcidID == "" {
		return false, fmt.Errorf("%w: userEmail and orcid are required", ErrInvalidInput)
	}
	return s.Repo.IsMonitoring(ctx, email, orcidID)
}

// Monitored lists the researchers a user monitors, ordered by name.
func (s *MonitoringService) Monitored(ctx context.Context, email string) ([]models.Researcher, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: userEmail is required", ErrInvalidInput)
	}
	return s.Repo.ListMonitoredBy(ctx, email)
}

// SyncUser registers a user on first login. It reports whether the user was created.
func (s *MonitoringService) SyncUser(ctx context.Context, name, email string) (bool, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return false, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	created, err := s.Repo.SyncUser(ctx, name, email)
	if err != nil {
		return false, err
	}
	if created {
		s.Logger.Info("User registered", zap.String("email", email))
	}
	return created, nil
}

// Subscribe stores or replaces the user's push subscription.
func (s *MonitoringService) Subscribe(ctx context.Context, email string, subscription []byte) (bool, error) {
	if email == "" || len(subscription) == 0 {
		return false, fmt.Errorf("%w: userEmail and subscription are required", ErrInvalidInput)
	}
	if _, err := notify.ParseSubscription(subscription); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return s.Repo.UpsertPushSubscription(ctx, user.ID, subscription)
}

// Unsubscribe removes the user's push subscription.
func (s *MonitoringService) Unsubscribe(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("%w: userEmail is required", ErrInvalidInput)
	}
	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	deleted, err := s.Repo.DeletePushSubscription(ctx, user.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("push subscription: %w", storage.ErrNotFound)
	}
	return nil
}
