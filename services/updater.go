package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orquidea/metrics"
	"orquidea/models"
	"orquidea/providers"
	"orquidea/providers/orcid"
	"orquidea/storage"
)

// Outcome is the terminal state of one researcher in a run.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeRehashed  Outcome = "rehashed"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
)

// Dispatcher sends notifications about newly detected works.
type Dispatcher interface {
	Notify(ctx context.Context, researcher models.Researcher, works []orcid.Work, subscribers []models.Subscriber) DispatchReport
}

// SnapshotArchive stores the fresh work list of an updated researcher.
type SnapshotArchive interface {
	PutSnapshot(ctx context.Context, orcidID string, at time.Time, data []byte) (string, error)
}

// ResearcherResult describes what happened to one researcher.
type ResearcherResult struct {
	OrcidID         string
	Outcome         Outcome
	NewPublications []orcid.Work
	Dispatch        DispatchReport
	Err             error
}

// RunReport summarizes a full pass over all monitored researchers.
type RunReport struct {
	RunID               string        `json:"run_id"`
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration"`
	Checked             int           `json:"checked"`
	Unchanged           int           `json:"unchanged"`
	Skipped             int           `json:"skipped"`
	Rehashed            int           `json:"rehashed"`
	Updated             int           `json:"updated"`
	Failed              int           `json:"failed"`
	NewPublications     int           `json:"new_publications"`
	NotificationsSent   int           `json:"notifications_sent"`
	NotificationsFailed int           `json:"notifications_failed"`
}

func (r *RunReport) add(res ResearcherResult) {
	r.Checked++
	switch res.Outcome {
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeRehashed:
		r.Rehashed++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeFailed:
		r.Failed++
	}
	r.NewPublications += len(res.NewPublications)
	r.NotificationsSent += res.Dispatch.Sent
	r.NotificationsFailed += res.Dispatch.Failed
}

// UpdateService runs the update check: fetch, fingerprint, detect, persist, notify.
type UpdateService struct {
	Repo        storage.Repository
	Source      providers.RecordSource
	Dispatcher  Dispatcher
	Archive     SnapshotArchive
	Guard       *RunGuard
	Logger      *zap.Logger
	Concurrency int

	persistMu sync.Mutex
	now       func() time.Time
}

// NewUpdateService creates the orchestrator. archive may be nil.
func NewUpdateService(repo storage.Repository, source providers.RecordSource, dispatcher Dispatcher, archive SnapshotArchive, guard *RunGuard, logger *zap.Logger, concurrency int) *UpdateService {
	if guard == nil {
		guard = NewRunGuard("")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &UpdateService{
		Repo:        repo,
		Source:      source,
		Dispatcher:  dispatcher,
		Archive:     archive,
		Guard:       guard,
		Logger:      logger,
		Concurrency: concurrency,
		now:         time.Now,
	}
}

// RunOnce checks every monitored researcher. A failing researcher never
// aborts the run; the returned error is reserved for run-level failures.
func (u *UpdateService) RunOnce(ctx context.Context) (*RunReport, error) {
	release, err := u.Guard.TryAcquire()
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			metrics.RunsRejected.Inc()
		}
		return nil, err
	}
	defer release()

	report := &RunReport{RunID: uuid.NewString(), StartedAt: u.now()}
	log := u.Logger.With(zap.String("run_id", report.RunID))
	log.Info("Starting update check")

	researchers, err := u.Repo.ListMonitoredResearchers(ctx)
	if err != nil {
		log.Error("Failed to list monitored researchers", zap.Error(err))
		return nil, fmt.Errorf("%w: list researchers: %v", ErrPersistence, err)
	}
	log.Info("Researchers to check", zap.Int("count", len(researchers)))

	results := make([]ResearcherResult, len(researchers))
	var g errgroup.Group
	g.SetLimit(u.Concurrency)
	for i, r := range researchers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = u.CheckResearcher(ctx, log, r)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.OrcidID == "" {
			continue
		}
		report.add(res)
		metrics.ResearchersChecked.WithLabelValues(string(res.Outcome)).Inc()
	}
	report.Duration = u.now().Sub(report.StartedAt)
	metrics.RunDuration.Observe(report.Duration.Seconds())
	metrics.NewPublications.Add(float64(report.NewPublications))

	log.Info("Update check finished",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
		zap.Int("new_publications", report.NewPublications),
		zap.Duration("duration", report.Duration))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// CheckResearcher runs the per-researcher state machine.
func (u *UpdateService) CheckResearcher(ctx context.Context, logger *zap.Logger, r models.Researcher) ResearcherResult {
	log := logger.With(zap.String("orcid", r.OrcidID), zap.String("name", r.Name))
	res := ResearcherResult{OrcidID: r.OrcidID}

	profile, err := u.Source.FetchProfile(ctx, r.OrcidID)
	if err != nil {
		log.Warn("Fetching works failed", zap.Error(err))
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		return res
	}
	works := profile.Works
	if len(works) == 0 {
		log.Info("No works found, skipping")
		res.Outcome = OutcomeSkipped
		return res
	}

	fingerprint := FingerprintWorks(works)
	if r.Fingerprint != nil && *r.Fingerprint == fingerprint {
		log.Debug("No changes")
		res.Outcome = OutcomeUnchanged
		return res
	}
	log.Info("Fingerprint changed, comparing works", zap.Int("works", len(works)))

	newWorks, err := u.persist(ctx, r, profile, fingerprint)
	if err != nil {
		log.Error("Update transaction rolled back", zap.Error(err))
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("%w: %v", ErrPersistence, err)
		return res
	}
	if len(newWorks) == 0 {
		log.Info("Fingerprint changed without new publications, hash updated")
		res.Outcome = OutcomeRehashed
		return res
	}

	res.Outcome = OutcomeUpdated
	res.NewPublications = newWorks
	log.Info("New publications stored", zap.Int("count", len(newWorks)))

	// Committed works are always dispatched; cancelling the run only stops
	// researchers that have not reached this point.
	dispatchCtx := context.WithoutCancel(ctx)
	u.archive(dispatchCtx, log, r.OrcidID, works)

	subscribers, err := u.Repo.ListSubscribers(dispatchCtx, r.OrcidID)
	if err != nil {
		log.Error("Listing subscribers failed, no notifications sent", zap.Error(err))
		res.Err = fmt.Errorf("%w: list subscribers: %v", ErrDispatch, err)
		return res
	}
	if profile.Name != "" {
		r.Name = profile.Name
	}
	res.Dispatch = u.Dispatcher.Notify(dispatchCtx, r, newWorks, subscribers)
	if res.Dispatch.Failed > 0 {
		res.Err = fmt.Errorf("%w: %d of %d deliveries failed", ErrDispatch, res.Dispatch.Failed, res.Dispatch.Failed+res.Dispatch.Sent)
	}
	return res
}

// persist stores new works, the fingerprint and the current name in one
// transaction. Nothing is committed when any step fails, so the next run
// re-detects the same works.
func (u *UpdateService) persist(ctx context.Context, r models.Researcher, profile *orcid.Profile, fingerprint string) ([]orcid.Work, error) {
	u.persistMu.Lock()
	defer u.persistMu.Unlock()

	var detected []orcid.Work
	err := u.Repo.InTx(ctx, func(tx storage.Repository) error {
		existing, err := tx.ListExistingPublications(ctx, r.OrcidID)
		if err != nil {
			return fmt.Errorf("list existing publications: %w", err)
		}
		detected = DetectNew(profile.Works, existing)

		for _, w := range detected {
			doi, title := PublicationFields(w)
			id, err := tx.InsertPublicationIfAbsent(ctx, doi, title)
			if err != nil {
				return fmt.Errorf("insert publication %q: %w", WorkIdentity(w), err)
			}
			if err := tx.LinkAuthorshipIfAbsent(ctx, r.OrcidID, id); err != nil {
				return fmt.Errorf("link authorship %d: %w", id, err)
			}
		}

		updated, err := tx.GetResearcher(ctx, r.OrcidID)
		if errors.Is(err, storage.ErrNotFound) {
			updated = &r
		} else if err != nil {
			return fmt.Errorf("load researcher: %w", err)
		}
		if profile.Name != "" {
			updated.Name = profile.Name
		}
		updated.Fingerprint = &fingerprint
		if err := tx.UpsertResearcher(ctx, updated); err != nil {
			return fmt.Errorf("update fingerprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detected, nil
}

func (u *UpdateService) archive(ctx context.Context, log *zap.Logger, orcidID string, works []orcid.Work) {
	if u.Archive == nil {
		return
	}
	data, err := json.Marshal(works)
	if err != nil {
		log.Warn("Failed to encode snapshot", zap.Error(err))
		return
	}
	key, err := u.Archive.PutSnapshot(ctx, orcidID, u.now(), data)
	if err != nil {
		log.Warn("Snapshot upload failed", zap.Error(err))
		return
	}
	log.Debug("Snapshot archived", zap.String("key", key))
}
