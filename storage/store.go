package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"orquidea/config"
	"orquidea/models"
)

// Store is the gorm/PostgreSQL implementation of Repository.
type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

// Open connects to PostgreSQL and configures the connection pool.
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Researcher{},
		&models.Publication{},
		&models.Authorship{},
		&models.User{},
		&models.UserMonitorsResearcher{},
		&models.UserPushSubscription{},
	)
}

// NewStore wraps an open gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) InTx(ctx context.Context, fn func(Repository) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) ListMonitoredResearchers(ctx context.Context) ([]models.Researcher, error) {
	var researchers []models.Researcher
	err := s.conn(ctx).
		Where("EXISTS (SELECT 1 FROM user_monitors_researchers umr WHERE umr.researcher_orcid_id = researchers.orcid_id)").
		Order("orcid_id").
		Find(&researchers).Error
	return researchers, err
}

func (s *Store) GetResearcher(ctx context.Context, orcidID string) (*models.Researcher, error) {
	var r models.Researcher
	if err := s.conn(ctx).Where("orcid_id = ?", orcidID).Take(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *Store) ListExistingPublications(ctx context.Context, orcidID string) ([]models.Publication, error) {
	var pubs []models.Publication
	err := s.conn(ctx).
		Joins("JOIN authorships a ON a.publication_id = publications.id").
		Where("a.researcher_orcid_id = ?", orcidID).
		Order("publications.id").
		Find(&pubs).Error
	return pubs, err
}

// UpsertResearcher overwrites name and fingerprint on conflict.
func (s *Store) UpsertResearcher(ctx context.Context, r *models.Researcher) error {
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "orcid_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "fingerprint", "updated_at"}),
	}).Create(r).Error
}

// InsertPublicationIfAbsent inserts the publication unless its identity
// already exists and returns the id of the stored row either way.
func (s *Store) InsertPublicationIfAbsent(ctx context.Context, doi *string, title string) (uint, error) {
	pub := models.Publication{DOI: doi, Title: title}
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pub)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 1 && pub.ID != 0 {
		return pub.ID, nil
	}

	var existing models.Publication
	q := s.conn(ctx).Model(&models.Publication{})
	if doi != nil {
		q = q.Where("doi = ?", *doi)
	} else {
		q = q.Where("title = ? AND doi IS NULL", title)
	}
	if err := q.Take(&existing).Error; err != nil {
		return 0, fmt.Errorf("lookup publication after insert: %w", translate(err))
	}
	return existing.ID, nil
}

func (s *Store) LinkAuthorshipIfAbsent(ctx context.Context, orcidID string, publicationID uint) error {
	return s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Authorship{
		ResearcherOrcidID: orcidID,
		PublicationID:     publicationID,
	}).Error
}

type subscriberRow struct {
	UserID           uint
	Email            string
	Name             string
	PushSubscription *string
}

func (s *Store) ListSubscribers(ctx context.Context, orcidID string) ([]models.Subscriber, error) {
	var rows []subscriberRow
	err := s.conn(ctx).Raw(`
		SELECT u.id AS user_id, u.email, u.name, ps.subscription::text AS push_subscription
		FROM users u
		JOIN user_monitors_researchers umr ON umr.user_id = u.id
		LEFT JOIN user_push_subscriptions ps ON ps.user_id = u.id
		WHERE umr.researcher_orcid_id = ?
		ORDER BY u.id`, orcidID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	subs := make([]models.Subscriber, 0, len(rows))
	for _, r := range rows {
		sub := models.Subscriber{UserID: r.UserID, Email: r.Email, Name: r.Name}
		if r.PushSubscription != nil {
			sub.PushSubscription = []byte(*r.PushSubscription)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) SyncUser(ctx context.Context, name, email string) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.User{Name: name, Email: email})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) AddMonitoring(ctx context.Context, userID uint, orcidID string) error {
	return s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserMonitorsResearcher{
		UserID:            userID,
		ResearcherOrcidID: orcidID,
	}).Error
}

func (s *Store) RemoveMonitoring(ctx context.Context, userID uint, orcidID string) (bool, error) {
	res := s.conn(ctx).
		Where("user_id = ? AND researcher_orcid_id = ?", userID, orcidID).
		Delete(&models.UserMonitorsResearcher{})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) IsMonitoring(ctx context.Context, email, orcidID string) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.UserMonitorsResearcher{}).
		Joins("JOIN users u ON u.id = user_monitors_researchers.user_id").
		Where("u.email = ? AND user_monitors_researchers.researcher_orcid_id = ?", email, orcidID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ListMonitoredBy(ctx context.Context, email string) ([]models.Researcher, error) {
	var researchers []models.Researcher
	err := s.conn(ctx).
		Joins("JOIN user_monitors_researchers umr ON umr.researcher_orcid_id = researchers.orcid_id").
		Joins("JOIN users u ON u.id = umr.user_id").
		Where("u.email = ?", email).
		Order("researchers.name").
		Find(&researchers).Error
	return researchers, err
}

func (s *Store) UpsertPushSubscription(ctx context.Context, userID uint, subscription []byte) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserPushSubscription{
		UserID:       userID,
		Subscription: subscription,
	})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	err := s.conn(ctx).Model(&models.UserPushSubscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"subscription": datatypes.JSON(subscription), "updated_at": time.Now()}).Error
	return false, err
}

func (s *Store) DeletePushSubscription(ctx context.Context, userID uint) (bool, error) {
	res := s.conn(ctx).Where("user_id = ?", userID).Delete(&models.UserPushSubscription{})
	return res.RowsAffected > 0, res.Error
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
