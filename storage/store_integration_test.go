//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"orquidea/config"
	"orquidea/models"
)

type StoreSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	db        *gorm.DB
	store     *Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration tests in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.ctx = context.Background()
	container, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orquidea"),
		tcpostgres.WithUsername("orquidea"),
		tcpostgres.WithPassword("orquidea"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "5432/tcp")
	s.Require().NoError(err)

	db, err := Open(&config.Config{
		DBHost:         host,
		DBPort:         port.Int(),
		DBUser:         "orquidea",
		DBPassword:     "orquidea",
		DBName:         "orquidea",
		DBSSLMode:      "disable",
		DBMaxOpenConns: 4,
		DBMaxIdleConns: 2,
	})
	s.Require().NoError(err)
	s.Require().NoError(Migrate(db))
	s.db = db
	s.store = NewStore(db)
}

func (s *StoreSuite) TearDownSuite() {
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.db.Exec(`TRUNCATE researchers, publications, authorships, users,
		user_monitors_researchers, user_push_subscriptions RESTART IDENTITY`).Error)
}

func (s *StoreSuite) seedUser(email string) *models.User {
	created, err := s.store.SyncUser(s.ctx, "Test", email)
	s.Require().NoError(err)
	s.Require().True(created)
	u, err := s.store.FindUserByEmail(s.ctx, email)
	s.Require().NoError(err)
	return u
}

func (s *StoreSuite) TestPublicationUniqueness() {
	doi := "10.1/x"
	a, err := s.store.InsertPublicationIfAbsent(s.ctx, &doi, "Title")
	s.Require().NoError(err)
	b, err := s.store.InsertPublicationIfAbsent(s.ctx, &doi, "Other title")
	s.Require().NoError(err)
	s.Equal(a, b)

	c, err := s.store.InsertPublicationIfAbsent(s.ctx, nil, "Title")
	s.Require().NoError(err)
	s.NotEqual(a, c)
	d, err := s.store.InsertPublicationIfAbsent(s.ctx, nil, "Title")
	s.Require().NoError(err)
	s.Equal(c, d)
}

func (s *StoreSuite) TestResearcherUpsertAndExistingPublications() {
	fp := "abc"
	s.Require().NoError(s.store.UpsertResearcher(s.ctx, &models.Researcher{OrcidID: "0000-0002-1825-0097", Name: "Old", Fingerprint: &fp}))
	fp2 := "def"
	s.Require().NoError(s.store.UpsertResearcher(s.ctx, &models.Researcher{OrcidID: "0000-0002-1825-0097", Name: "New", Fingerprint: &fp2}))

	r, err := s.store.GetResearcher(s.ctx, "0000-0002-1825-0097")
	s.Require().NoError(err)
	s.Equal("New", r.Name)
	s.Equal("def", *r.Fingerprint)

	id, err := s.store.InsertPublicationIfAbsent(s.ctx, nil, "Paper")
	s.Require().NoError(err)
	s.Require().NoError(s.store.LinkAuthorshipIfAbsent(s.ctx, r.OrcidID, id))
	s.Require().NoError(s.store.LinkAuthorshipIfAbsent(s.ctx, r.OrcidID, id))

	pubs, err := s.store.ListExistingPublications(s.ctx, r.OrcidID)
	s.Require().NoError(err)
	s.Len(pubs, 1)

	_, err = s.store.GetResearcher(s.ctx, "0000-0000-0000-0000")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestTransactionRollback() {
	boom := errors.New("boom")
	err := s.store.InTx(s.ctx, func(tx Repository) error {
		if _, err := tx.InsertPublicationIfAbsent(s.ctx, nil, "Lost"); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	var count int64
	s.Require().NoError(s.db.Model(&models.Publication{}).Count(&count).Error)
	s.Zero(count)
}

func (s *StoreSuite) TestMonitoringAndSubscribers() {
	ana := s.seedUser("ana@example.com")
	bruno := s.seedUser("bruno@example.com")
	orcidID := "0000-0002-1825-0097"
	s.Require().NoError(s.store.UpsertResearcher(s.ctx, &models.Researcher{OrcidID: orcidID, Name: "Josiah"}))
	s.Require().NoError(s.store.UpsertResearcher(s.ctx, &models.Researcher{OrcidID: "0000-0001-0000-0001", Name: "Unmonitored"}))

	s.Require().NoError(s.store.AddMonitoring(s.ctx, ana.ID, orcidID))
	s.Require().NoError(s.store.AddMonitoring(s.ctx, ana.ID, orcidID))
	s.Require().NoError(s.store.AddMonitoring(s.ctx, bruno.ID, orcidID))

	monitored, err := s.store.ListMonitoredResearchers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(monitored, 1)
	s.Equal(orcidID, monitored[0].OrcidID)

	created, err := s.store.UpsertPushSubscription(s.ctx, bruno.ID, []byte(`{"endpoint":"https://push/b"}`))
	s.Require().NoError(err)
	s.True(created)
	created, err = s.store.UpsertPushSubscription(s.ctx, bruno.ID, []byte(`{"endpoint":"https://push/b2"}`))
	s.Require().NoError(err)
	s.False(created)

	subs, err := s.store.ListSubscribers(s.ctx, orcidID)
	s.Require().NoError(err)
	s.Require().Len(subs, 2)
	s.False(subs[0].HasPush())
	s.True(subs[1].HasPush())
	s.JSONEq(`{"endpoint":"https://push/b2"}`, string(subs[1].PushSubscription))

	ok, err := s.store.IsMonitoring(s.ctx, "ana@example.com", orcidID)
	s.Require().NoError(err)
	s.True(ok)

	removed, err := s.store.RemoveMonitoring(s.ctx, ana.ID, orcidID)
	s.Require().NoError(err)
	s.True(removed)
	removed, err = s.store.RemoveMonitoring(s.ctx, ana.ID, orcidID)
	s.Require().NoError(err)
	s.False(removed)

	byBruno, err := s.store.ListMonitoredBy(s.ctx, "bruno@example.com")
	s.Require().NoError(err)
	s.Len(byBruno, 1)

	deleted, err := s.store.DeletePushSubscription(s.ctx, bruno.ID)
	s.Require().NoError(err)
	s.True(deleted)
}
