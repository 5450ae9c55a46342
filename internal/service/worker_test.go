package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/trust-engine/internal/model"
	"github.com/d60-Lab/trust-engine/internal/repository"
	"github.com/d60-Lab/trust-engine/internal/scoring"
	"github.com/d60-Lab/trust-engine/pkg/database"
)

type testEnv struct {
	db     *gorm.DB
	users  repository.UserRepository
	jobs   repository.JobRepository
	scores repository.ScoreRepository
	audits repository.AuditRepository
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return &testEnv{
		db:     db,
		users:  repository.NewUserRepository(db),
		jobs:   repository.NewJobRepository(db),
		scores: repository.NewScoreRepository(db),
		audits: repository.NewAuditRepository(db),
	}
}

func (e *testEnv) worker(maxAttempts int) *Worker {
	return NewWorker(e.db, e.jobs, e.users, e.scores, e.audits, nil,
		scoring.DefaultConfig(), 1, maxAttempts, 10*time.Millisecond)
}

func (e *testEnv) userService(waitPoll time.Duration) UserService {
	return NewUserService(e.db, e.users, e.jobs, e.scores, e.audits, waitPoll)
}

func TestUpsertEnqueuesAndWorkerComputes(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.userService(0)
	w := env.worker(3)

	la := time.Now().UTC().Add(-time.Hour)
	created, err := svc.Upsert(ctx, UserInput{
		UserID: "u1", Photos: 6, Bio: true, Interests: 5,
		SelfieVerified: true, IDVerified: true,
		LoginStreakDays: 30, ResponseRatePct: 100,
		LastActiveAt: &la,
	})
	require.NoError(t, err)
	assert.True(t, created)

	processed, err := w.processOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	score, err := env.scores.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, score.Score)
	assert.Contains(t, []string(score.Badges), scoring.BadgeFullyVerified)

	history, err := env.audits.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, score.Score, history[0].Score)

	job, err := env.jobs.LatestByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, job.Status)
	assert.Equal(t, job.ID, history[0].JobID)
}

// Two upserts land before the worker claims: the second enqueue coalesces
// into the pending job, and the single recompute sees the latest user state.
func TestCoalescedUpsertsUseLatestState(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.userService(0)
	w := env.worker(3)

	la := time.Now().UTC()
	created, err := svc.Upsert(ctx, UserInput{UserID: "u1", Photos: 1, LastActiveAt: &la})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Upsert(ctx, UserInput{UserID: "u1", Photos: 6, Bio: true, Interests: 5, LastActiveAt: &la})
	require.NoError(t, err)
	assert.False(t, created, "second upsert coalesces into the pending job")

	processed, err := w.processOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = w.processOnce(ctx)
	require.NoError(t, err)
	assert.False(t, processed, "only one job to do")

	score, err := env.scores.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, score.Breakdown["profile"], "recompute saw the second upsert")

	n, err := env.audits.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestWorkerCompletesJobForMissingUser(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.worker(3)

	// job enqueued outside the upsert path, user row never written
	created, err := env.jobs.Enqueue(ctx, nil, "ghost")
	require.NoError(t, err)
	require.True(t, created)

	processed, err := w.processOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	job, err := env.jobs.LatestByUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, job.Status)

	_, err = env.scores.Get(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrScoreNotFound)
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.userService(0)
	w := env.worker(2)

	_, err := svc.Upsert(ctx, UserInput{UserID: "u1", Photos: 3})
	require.NoError(t, err)

	// break the persist path: the audit table is gone, every persist fails
	require.NoError(t, env.db.Migrator().DropTable(&model.TrustScoreAudit{}))

	// attempt 1: persist fails, job requeued
	processed, err := w.processOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	job, err := env.jobs.LatestByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.NotEmpty(t, job.LastError)

	// attempt 2 hits the ceiling: dead letter
	processed, err = w.processOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	job, err = env.jobs.LatestByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)

	// the failed persist rolled back: no half-written score
	_, err = env.scores.Get(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrScoreNotFound)

	// the queue is drained, nothing retries forever
	processed, err = w.processOnce(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorkerDeterministicRecompute(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.userService(0)
	w := env.worker(3)

	// pin the clock so both recomputes score at the same instant
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	la := fixed.Add(-30 * 24 * time.Hour)
	in := UserInput{UserID: "u1", Photos: 4, Bio: true, SelfieVerified: true, LastActiveAt: &la}

	_, err := svc.Upsert(ctx, in)
	require.NoError(t, err)
	_, err = w.processOnce(ctx)
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, in)
	require.NoError(t, err)
	_, err = w.processOnce(ctx)
	require.NoError(t, err)

	history, err := env.audits.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, history[0].Score, history[1].Score)
	assert.Equal(t, history[0].Breakdown, history[1].Breakdown)
	assert.NotEqual(t, history[0].JobID, history[1].JobID)
}

func TestUpsertAndWait(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.userService(10 * time.Millisecond)
	w := env.worker(3)

	stop := w.Start()
	defer func() { _ = stop(context.Background()) }()

	la := time.Now().UTC()
	score, err := svc.UpsertAndWait(ctx, UserInput{
		UserID: "u1", Photos: 6, Bio: true, Interests: 5, LastActiveAt: &la,
	}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "u1", score.UserID)
	assert.Greater(t, score.Score, 0.0)
}

func TestUpsertAndWaitTimesOut(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.userService(10 * time.Millisecond)

	// no worker running: the wait must give up, not block forever
	_, err := svc.UpsertAndWait(ctx, UserInput{UserID: "u1"}, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestStolenClaimDoesNotDuplicateAudit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.userService(0)
	w := env.worker(5)

	_, err := svc.Upsert(ctx, UserInput{UserID: "u1", Photos: 3})
	require.NoError(t, err)

	// first worker claims, then stalls past the stale window
	stale, err := env.jobs.ClaimNext(ctx)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, env.db.Model(&model.RecomputeJob{}).
		Where("id = ?", stale.ID).
		Update("claimed_at", past).Error)
	n, err := env.jobs.ReclaimStale(ctx, time.Second)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// another worker claims the rescued job and finishes it
	processed, err := w.processOnce(ctx)
	require.NoError(t, err)
	require.True(t, processed)
	count, err := env.audits.CountByUser(ctx, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	// the stalled worker resumes with its stale handle; the guarded done
	// transition fails and its whole write rolls back
	user, err := env.users.GetByID(ctx, "u1")
	require.NoError(t, err)
	res := scoring.Compute(user, w.now(), w.scoringCfg)
	err = w.finishJob(ctx, stale, user, res, w.now())
	require.ErrorIs(t, err, ErrClaimLost)

	count, err = env.audits.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "a job yields exactly one audit entry")
}

func TestSweeperReclaimsAbandonedJob(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, err := env.jobs.Enqueue(ctx, nil, "u1")
	require.NoError(t, err)
	require.True(t, created)

	claimed, err := env.jobs.ClaimNext(ctx)
	require.NoError(t, err)

	// simulate a crash: backdate the claim past the stale window
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, env.db.Model(&model.RecomputeJob{}).
		Where("id = ?", claimed.ID).
		Update("claimed_at", past).Error)

	sw := NewSweeper(env.jobs, 10*time.Millisecond, 20*time.Millisecond)
	stop := sw.Start()
	defer func() { _ = stop(context.Background()) }()

	require.Eventually(t, func() bool {
		job, err := env.jobs.GetByID(ctx, claimed.ID)
		return err == nil && job.Status == model.JobStatusPending
	}, 2*time.Second, 10*time.Millisecond, "sweeper requeues the stale claim")
}
