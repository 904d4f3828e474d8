package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"orquidea/models"
)

type monitorKey struct {
	userID  uint
	orcidID string
}

type authorshipKey struct {
	orcidID       string
	publicationID uint
}

type memState struct {
	researchers  map[string]models.Researcher
	publications []models.Publication
	authorships  map[authorshipKey]struct{}
	users        []models.User
	monitors     map[monitorKey]struct{}
	pushes       map[uint][]byte
}

func newMemState() *memState {
	return &memState{
		researchers: make(map[string]models.Researcher),
		authorships: make(map[authorshipKey]struct{}),
		monitors:    make(map[monitorKey]struct{}),
		pushes:      make(map[uint][]byte),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.researchers {
		if v.Fingerprint != nil {
			fp := *v.Fingerprint
			v.Fingerprint = &fp
		}
		c.researchers[k] = v
	}
	c.publications = append(c.publications, s.publications...)
	for k := range s.authorships {
		c.authorships[k] = struct{}{}
	}
	c.users = append(c.users, s.users...)
	for k := range s.monitors {
		c.monitors[k] = struct{}{}
	}
	for k, v := range s.pushes {
		c.pushes[k] = append([]byte(nil), v...)
	}
	return c
}

// Memory is an in-process Repository. Transactions work on a copy of the
// state that replaces the live state on commit; they are serialized.
type Memory struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memState
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) InTx(ctx context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	tx := &Memory{state: m.state.clone()}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = tx.state
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListMonitoredResearchers(ctx context.Context) ([]models.Researcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	monitored := make(map[string]bool)
	for k := range m.state.monitors {
		monitored[k.orcidID] = true
	}
	var out []models.Researcher
	for id, r := range m.state.researchers {
		if monitored[id] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrcidID < out[j].OrcidID })
	return out, nil
}

func (m *Memory) GetResearcher(ctx context.Context, orcidID string) (*models.Researcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.state.researchers[orcidID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListExistingPublications(ctx context.Context, orcidID string) ([]models.Publication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Publication
	for _, p := range m.state.publications {
		if _, ok := m.state.authorships[authorshipKey{orcidID, p.ID}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) UpsertResearcher(ctx context.Context, r *models.Researcher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stored, ok := m.state.researchers[r.OrcidID]
	if !ok {
		stored = models.Researcher{OrcidID: r.OrcidID, CreatedAt: now}
	}
	stored.Name = r.Name
	stored.Fingerprint = r.Fingerprint
	stored.UpdatedAt = now
	m.state.researchers[r.OrcidID] = stored
	return nil
}

func (m *Memory) InsertPublicationIfAbsent(ctx context.Context, doi *string, title string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.state.publications {
		if doi != nil && p.DOI != nil && *p.DOI == *doi {
			return p.ID, nil
		}
		if doi == nil && p.DOI == nil && p.Title == title {
			return p.ID, nil
		}
	}
	pub := models.Publication{
		ID:        uint(len(m.state.publications) + 1),
		DOI:       doi,
		Title:     title,
		CreatedAt: time.Now(),
	}
	m.state.publications = append(m.state.publications, pub)
	return pub.ID, nil
}

func (m *Memory) LinkAuthorshipIfAbsent(ctx context.Context, orcidID string, publicationID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.authorships[authorshipKey{orcidID, publicationID}] = struct{}{}
	return nil
}

func (m *Memory) ListSubscribers(ctx context.Context, orcidID string) ([]models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Subscriber
	for _, u := range m.state.users {
		if _, ok := m.state.monitors[monitorKey{u.ID, orcidID}]; !ok {
			continue
		}
		out = append(out, models.Subscriber{
			UserID:           u.ID,
			Email:            u.Email,
			Name:             u.Name,
			PushSubscription: m.state.pushes[u.ID],
		})
	}
	return out, nil
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.findUser(email)
}

func (m *Memory) findUser(email string) (*models.User, error) {
	for _, u := range m.state.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SyncUser(ctx context.Context, name, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.findUser(email); err == nil {
		return false, nil
	}
	m.state.users = append(m.state.users, models.User{
		ID:        uint(len(m.state.users) + 1),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
	})
	return true, nil
}

func (m *Memory) AddMonitoring(ctx context.Context, userID uint, orcidID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.monitors[monitorKey{userID, orcidID}] = struct{}{}
	return nil
}

func (m *Memory) RemoveMonitoring(ctx context.Context, userID uint, orcidID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := monitorKey{userID, orcidID}
	if _, ok := m.state.monitors[key]; !ok {
		return false, nil
	}
	delete(m.state.monitors, key)
	return true, nil
}

func (m *Memory) IsMonitoring(ctx context.Context, email, orcidID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.findUser(email)
	if err != nil {
		return false, nil
	}
	_, ok := m.state.monitors[monitorKey{u.ID, orcidID}]
	return ok, nil
}

func (m *Memory) ListMonitoredBy(ctx context.Context, email string) ([]models.Researcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.findUser(email)
	if err != nil {
		return nil, nil
	}
	var out []models.Researcher
	for k := range m.state.monitors {
		if k.userID != u.ID {
			continue
		}
		if r, ok := m.state.researchers[k.orcidID]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].Name, out[j].Name) < 0 })
	return out, nil
}

func (m *Memory) UpsertPushSubscription(ctx context.Context, userID uint, subscription []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.state.pushes[userID]
	m.state.pushes[userID] = append([]byte(nil), subscription...)
	return !existed, nil
}

func (m *Memory) DeletePushSubscription(ctx context.Context, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.pushes[userID]; !ok {
		return false, nil
	}
	delete(m.state.pushes, userID)
	return true, nil
}
