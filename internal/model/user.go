package model

import "time"

// User holds the profile signals the score is derived from.
// Rows are written by the upsert path only; the scoring core never mutates them.
type User struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Photos          int        `json:"photos"`
	BioFilled       bool       `json:"bio_filled"`
	InterestsCount  int        `json:"interests_count"`
	SelfieVerified  bool       `json:"selfie_verified"`
	IDVerified      bool       `json:"id_verified"`
	LoginStreak     int        `json:"login_streak_days"`
	ResponseRatePct int        `json:"response_rate_pct"`
	ReportsCount    int        `json:"reports_received"`
	LastActiveAt    *time.Time `json:"last_active_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }
