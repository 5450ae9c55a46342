package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/d60-Lab/trust-engine/config"
	"github.com/d60-Lab/trust-engine/internal/model"
	"github.com/d60-Lab/trust-engine/internal/repository"
	"github.com/d60-Lab/trust-engine/internal/service"
	"github.com/d60-Lab/trust-engine/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))

	// params
	N := 5000 // users to upsert (one recompute job each)
	WORKERS := 8
	if s := os.Getenv("N"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			N = v
		}
	}
	if s := os.Getenv("WORKERS"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			WORKERS = v
		}
	}

	// clean tables for a reproducible run (ok for local bench)
	_ = db.Exec("DELETE FROM recompute_jobs").Error
	_ = db.Exec("DELETE FROM trust_score_audit").Error
	_ = db.Exec("DELETE FROM trust_scores").Error
	_ = db.Exec("DELETE FROM users").Error

	jobRepo := repository.NewJobRepository(db)
	userRepo := repository.NewUserRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userSvc := service.NewUserService(db, userRepo, jobRepo, scoreRepo, auditRepo, 0)

	worker := service.NewWorker(db, jobRepo, userRepo, scoreRepo, auditRepo, nil,
		cfg.Scoring, WORKERS, cfg.Worker.MaxAttempts, 20*time.Millisecond)
	stop := worker.Start()
	defer stop(context.Background())

	// enqueue N upserts, each creating one recompute job
	active := time.Now().UTC()
	enq := make([]time.Duration, 0, N)
	for i := 0; i < N; i++ {
		in := service.UserInput{
			UserID:          fmt.Sprintf("bench-user-%06d", i),
			Photos:          i % 8,
			Bio:             i%2 == 0,
			Interests:       i % 7,
			SelfieVerified:  i%3 == 0,
			IDVerified:      i%5 == 0,
			LoginStreakDays: i % 40,
			ResponseRatePct: i % 101,
			ReportsReceived: i % 3,
			LastActiveAt:    &active,
		}
		st := time.Now()
		if _, err := userSvc.Upsert(context.Background(), in); err != nil {
			panic(err)
		}
		enq = append(enq, time.Since(st))
	}

	// collect per-job enqueue->done latencies
	done := make([]time.Duration, 0, N)
	timeout := time.After(2 * time.Minute)
	for len(done) < N {
		select {
		case d := <-worker.Metrics():
			done = append(done, d)
		case <-timeout:
			fmt.Printf("timeout while waiting for job metrics: got=%d want=%d\n", len(done), N)
			goto PRINT
		}
	}

PRINT:
	var enqSum time.Duration
	for _, d := range enq {
		enqSum += d
	}
	fmt.Printf("N=%d WORKERS=%d DB=%s\n", N, WORKERS, cfg.Database.Driver)
	fmt.Printf("Upsert+enqueue tx latency: avg=%v p95=%v p99=%v\n",
		enqSum/time.Duration(len(enq)), pct(enq, 0.95), pct(enq, 0.99))
	var doneSum time.Duration
	for _, d := range done {
		doneSum += d
	}
	fmt.Printf("Recompute (enqueue->done): samples=%d avg=%v p95=%v p99=%v\n",
		len(done), doneSum/time.Duration(len(done)), pct(done, 0.95), pct(done, 0.99))

	// queue depth should be drained by now
	var pending, failed int64
	_ = db.Model(&model.RecomputeJob{}).Where("status = ?", model.JobStatusPending).Count(&pending).Error
	_ = db.Model(&model.RecomputeJob{}).Where("status = ?", model.JobStatusFailed).Count(&failed).Error
	fmt.Printf("Queue after drain: pending=%d failed=%d\n", pending, failed)

	// one read from the write-through result
	if N > 0 {
		st := time.Now()
		s, err := scoreRepo.Get(context.Background(), "bench-user-000000")
		if err == nil {
			fmt.Printf("Score read (user0): %v, score=%.2f badges=%v\n", time.Since(st), s.Score, []string(s.Badges))
		}
	}
}
