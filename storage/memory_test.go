package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orquidea/models"
)

func TestMemoryTransactionRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	fp := "before"
	require.NoError(t, m.UpsertResearcher(ctx, &models.Researcher{OrcidID: "r1", Name: "R", Fingerprint: &fp}))

	boom := errors.New("boom")
	err := m.InTx(ctx, func(tx Repository) error {
		id, err := tx.InsertPublicationIfAbsent(ctx, nil, "Lost")
		require.NoError(t, err)
		require.NoError(t, tx.LinkAuthorshipIfAbsent(ctx, "r1", id))
		after := "after"
		require.NoError(t, tx.UpsertResearcher(ctx, &models.Researcher{OrcidID: "r1", Name: "R", Fingerprint: &after}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r, err := m.GetResearcher(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "before", *r.Fingerprint)
	pubs, err := m.ListExistingPublications(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, pubs)
}

func TestMemoryTransactionCommit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.InTx(ctx, func(tx Repository) error {
		id, err := tx.InsertPublicationIfAbsent(ctx, nil, "Kept")
		if err != nil {
			return err
		}
		return tx.LinkAuthorshipIfAbsent(ctx, "r1", id)
	})
	require.NoError(t, err)

	pubs, err := m.ListExistingPublications(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "Kept", pubs[0].Title)
}

func TestMemoryPublicationUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	doi := "10.1/x"

	a, err := m.InsertPublicationIfAbsent(ctx, &doi, "A")
	require.NoError(t, err)
	b, err := m.InsertPublicationIfAbsent(ctx, &doi, "B")
	require.NoError(t, err)
	c, err := m.InsertPublicationIfAbsent(ctx, nil, "A")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMemoryUsersAndMonitoring(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.SyncUser(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = m.SyncUser(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = m.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := m.FindUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NoError(t, m.UpsertResearcher(ctx, &models.Researcher{OrcidID: "r2", Name: "Zed"}))
	require.NoError(t, m.UpsertResearcher(ctx, &models.Researcher{OrcidID: "r1", Name: "Alba"}))
	require.NoError(t, m.UpsertResearcher(ctx, &models.Researcher{OrcidID: "r3", Name: "Unwatched"}))
	require.NoError(t, m.AddMonitoring(ctx, u.ID, "r2"))
	require.NoError(t, m.AddMonitoring(ctx, u.ID, "r1"))

	list, err := m.ListMonitoredBy(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alba", list[0].Name)

	monitored, err := m.ListMonitoredResearchers(ctx)
	require.NoError(t, err)
	assert.Len(t, monitored, 2)

	subs, err := m.ListSubscribers(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.False(t, subs[0].HasPush())
}

func TestSnapshotKey(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, "snapshots/0000-0002-1825-0097/2026-10-19T11-30-00Z.json", SnapshotKey("0000-0002-1825-0097", at))
}
