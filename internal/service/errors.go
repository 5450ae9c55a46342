package service

import "errors"

var (
	// ErrWaitTimeout means UpsertAndWait gave up before the recompute landed.
	ErrWaitTimeout = errors.New("timed out waiting for score recompute")

	// ErrRecomputeFailed means the user's latest job was dead-lettered.
	ErrRecomputeFailed = errors.New("score recompute failed")

	// ErrClaimLost means a worker's claim was reclaimed by the stale sweep
	// and the job finished elsewhere; the late worker's result is discarded.
	ErrClaimLost = errors.New("job claim lost")
)
