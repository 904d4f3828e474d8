package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"

	"orquidea/models"
	"orquidea/notify"
	"orquidea/providers/orcid"
)

type fakeEmail struct {
	mu        sync.Mutex
	failFor   map[string]bool
	afterSend func()
	attempts  []string
	delivered []string
	messages  []notify.Message
}

// Send fails like a real dial would once ctx is done.
func (f *fakeEmail) Send(ctx context.Context, to string, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, to)
	f.messages = append(f.messages, msg)
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failFor[to] {
		return errors.New("smtp: connection reset")
	}
	f.delivered = append(f.delivered, to)
	if f.afterSend != nil {
		f.afterSend()
	}
	return nil
}

type fakePush struct {
	mu       sync.Mutex
	results  map[string]error
	attempts []string
}

func (f *fakePush) Send(_ context.Context, subscription []byte, _ notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, string(subscription))
	return f.results[string(subscription)]
}

type fakePruner struct {
	deleted []uint
}

func (f *fakePruner) DeletePushSubscription(_ context.Context, userID uint) (bool, error) {
	f.deleted = append(f.deleted, userID)
	return true, nil
}

func TestBuildMessage(t *testing.T) {
	r := models.Researcher{OrcidID: "0000-0002-1825-0097", Name: "Josiah Carberry"}
	msg := BuildMessage(r, []orcid.Work{work("10.1/a", "First"), work("10.1/b", "")})

	assert.Equal(t, "Josiah Carberry", msg.ResearcherName)
	assert.Equal(t, []string{"First", "10.1/b"}, msg.Titles)

	msg = BuildMessage(models.Researcher{OrcidID: "0000-0002-1825-0097"}, nil)
	assert.Equal(t, "0000-0002-1825-0097", msg.ResearcherName)
	assert.Empty(t, msg.Titles)
}

func TestNotifyContinuesAfterEmailFailure(t *testing.T) {
	email := &fakeEmail{failFor: map[string]bool{"b@example.com": true}}
	n := NewNotifier(email, nil, nil, zaptest.NewLogger(t))

	subs := []models.Subscriber{
		{UserID: 1, Email: "a@example.com"},
		{UserID: 2, Email: "b@example.com"},
		{UserID: 3, Email: "c@example.com"},
	}
	report := n.Notify(context.Background(), models.Researcher{OrcidID: "x", Name: "X"}, []orcid.Work{work("", "Paper")}, subs)

	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, email.attempts)
	assert.Equal(t, DispatchReport{Sent: 2, Failed: 1}, report)
	for _, m := range email.messages {
		assert.Equal(t, []string{"Paper"}, m.Titles)
	}
}

func TestNotifyPushOnlyForSubscribersWithSubscription(t *testing.T) {
	email := &fakeEmail{}
	push := &fakePush{}
	n := NewNotifier(email, push, nil, zaptest.NewLogger(t))

	subs := []models.Subscriber{
		{UserID: 1, Email: "a@example.com", PushSubscription: datatypes.JSON([]byte(`{"endpoint":"https://push/a"}`))},
		{UserID: 2, Email: "b@example.com"},
	}
	report := n.Notify(context.Background(), models.Researcher{OrcidID: "x"}, []orcid.Work{work("10.1/a", "")}, subs)

	assert.Len(t, email.attempts, 2)
	assert.Equal(t, []string{`{"endpoint":"https://push/a"}`}, push.attempts)
	assert.Equal(t, DispatchReport{Sent: 3}, report)
}

func TestNotifyPrunesGoneSubscriptions(t *testing.T) {
	gone := `{"endpoint":"https://push/gone"}`
	push := &fakePush{results: map[string]error{gone: notify.ErrSubscriptionGone}}
	pruner := &fakePruner{}
	n := NewNotifier(nil, push, pruner, zaptest.NewLogger(t))

	subs := []models.Subscriber{
		{UserID: 7, Email: "a@example.com", PushSubscription: datatypes.JSON([]byte(gone))},
		{UserID: 8, Email: "b@example.com", PushSubscription: datatypes.JSON([]byte(`{"endpoint":"https://push/ok"}`))},
	}
	report := n.Notify(context.Background(), models.Researcher{OrcidID: "x"}, []orcid.Work{work("", "T")}, subs)

	require.Equal(t, []uint{7}, pruner.deleted)
	assert.Equal(t, DispatchReport{Sent: 1, Failed: 1}, report)
}

func TestNotifyNoWorksOrSubscribers(t *testing.T) {
	email := &fakeEmail{}
	n := NewNotifier(email, nil, nil, zaptest.NewLogger(t))

	assert.Zero(t, n.Notify(context.Background(), models.Researcher{}, nil, []models.Subscriber{{Email: "a@example.com"}}))
	assert.Zero(t, n.Notify(context.Background(), models.Researcher{}, []orcid.Work{work("", "T")}, nil))
	assert.Empty(t, email.attempts)
}

func TestNotifyLogsFailedDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	email := &fakeEmail{failFor: map[string]bool{"a@example.com": true}}
	n := NewNotifier(email, nil, nil, zap.New(core))

	n.Notify(context.Background(), models.Researcher{OrcidID: "x"}, []orcid.Work{work("", "T")},
		[]models.Subscriber{{UserID: 1, Email: "a@example.com"}})

	entries := logs.FilterMessage("Email notification failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a@example.com", entries[0].ContextMap()["email"])
	assert.Equal(t, "x", entries[0].ContextMap()["orcid"])
}
