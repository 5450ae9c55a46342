package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/trust-engine/internal/model"
)

func TestScoreUpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScoreRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(ctx, nil, &model.TrustScore{
		UserID:     "u1",
		Score:      42.5,
		Breakdown:  model.Breakdown{"profile": 40},
		Badges:     model.Badges{},
		ComputedAt: now,
	}))

	require.NoError(t, repo.Upsert(ctx, nil, &model.TrustScore{
		UserID:     "u1",
		Score:      77.25,
		Breakdown:  model.Breakdown{"profile": 80, "verification": 100},
		Badges:     model.Badges{"trusted_member"},
		ComputedAt: now.Add(time.Minute),
	}))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 77.25, got.Score)
	assert.Equal(t, 80.0, got.Breakdown["profile"])
	assert.Equal(t, model.Badges{"trusted_member"}, got.Badges)

	var rows int64
	require.NoError(t, db.Model(&model.TrustScore{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows, "current-value semantics, one row per user")
}

func TestScoreGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScoreRepository(db)

	_, err := repo.Get(context.Background(), "never-computed")
	assert.ErrorIs(t, err, ErrScoreNotFound)
}

func TestAuditAppendOnlyOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	scores := []float64{10, 35.5, 80}
	for i, s := range scores {
		require.NoError(t, repo.Append(ctx, nil, &model.TrustScoreAudit{
			UserID:     "u1",
			JobID:      "job-" + string(rune('a'+i)),
			Score:      s,
			Breakdown:  model.Breakdown{"profile": s},
			Badges:     model.Badges{},
			ComputedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// another user's entries stay out of u1's history
	require.NoError(t, repo.Append(ctx, nil, &model.TrustScoreAudit{
		UserID: "u2", JobID: "job-x", Score: 1, ComputedAt: base,
	}))

	history, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, len(scores))
	for i, e := range history {
		assert.Equal(t, scores[i], e.Score, "history ordered oldest first")
		assert.Equal(t, "u1", e.UserID)
	}

	// restartable: a second query returns the same prefix
	again, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, history, again)

	n, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, len(scores), n)
}

func TestUserUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	la := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Upsert(ctx, nil, &model.User{
		ID: "u1", Photos: 2, BioFilled: false, LastActiveAt: &la,
	}))

	require.NoError(t, repo.Upsert(ctx, nil, &model.User{
		ID: "u1", Photos: 5, BioFilled: true, SelfieVerified: true, LastActiveAt: &la,
	}))

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Photos)
	assert.True(t, got.BioFilled)
	assert.True(t, got.SelfieVerified)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
