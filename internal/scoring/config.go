package scoring

import (
	"fmt"
	"math"
	"time"
)

// Config carries every tunable of the calculator. The zero value is not
// usable; start from DefaultConfig and override selectively.
type Config struct {
	// Sub-score weights, must sum to 1.0.
	ProfileWeight      float64 `mapstructure:"profile_weight"`
	VerificationWeight float64 `mapstructure:"verification_weight"`
	ActivityWeight     float64 `mapstructure:"activity_weight"`
	EngagementWeight   float64 `mapstructure:"engagement_weight"`

	// Activity sub-score: full score inside FullWindow, linear decay down to
	// ActivityFloor at FarWindow, clamped at the floor beyond that.
	ActivityFullWindow time.Duration `mapstructure:"activity_full_window"`
	ActivityFarWindow  time.Duration `mapstructure:"activity_far_window"`
	ActivityFloor      float64       `mapstructure:"activity_floor"`

	// Multiplicative penalty on the combined score once inactivity exceeds
	// DecayThreshold: total *= max(DecayFloor, 1 - excess/DecayHorizon).
	DecayThreshold time.Duration `mapstructure:"decay_threshold"`
	DecayHorizon   time.Duration `mapstructure:"decay_horizon"`
	DecayFloor     float64       `mapstructure:"decay_floor"`

	// Badge thresholds.
	HighlyActiveMin  float64 `mapstructure:"highly_active_min"`
	TrustedMemberMin float64 `mapstructure:"trusted_member_min"`
	VerifiedUserMin  float64 `mapstructure:"verified_user_min"`
}

// DefaultConfig mirrors the historical point split of the engine:
// profile 30 / verification 40 / activity+engagement 30 out of 100,
// rescaled so every sub-score lives in [0, 100].
func DefaultConfig() Config {
	return Config{
		ProfileWeight:      0.25,
		VerificationWeight: 0.35,
		ActivityWeight:     0.25,
		EngagementWeight:   0.15,

		ActivityFullWindow: 7 * 24 * time.Hour,
		ActivityFarWindow:  90 * 24 * time.Hour,
		ActivityFloor:      10,

		DecayThreshold: 180 * 24 * time.Hour,
		DecayHorizon:   365 * 24 * time.Hour,
		DecayFloor:     0.5,

		HighlyActiveMin:  90,
		TrustedMemberMin: 70,
		VerifiedUserMin:  85,
	}
}

// Validate rejects configurations the calculator cannot run on.
// A bad config is a startup error, never a per-job one.
func (c Config) Validate() error {
	sum := c.ProfileWeight + c.VerificationWeight + c.ActivityWeight + c.EngagementWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	if c.ProfileWeight < 0 || c.VerificationWeight < 0 || c.ActivityWeight < 0 || c.EngagementWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if c.ActivityFullWindow <= 0 || c.ActivityFarWindow <= c.ActivityFullWindow {
		return fmt.Errorf("activity windows must satisfy 0 < full < far, got full=%v far=%v",
			c.ActivityFullWindow, c.ActivityFarWindow)
	}
	if c.ActivityFloor < 0 || c.ActivityFloor > 100 {
		return fmt.Errorf("activity floor must be in [0,100], got %v", c.ActivityFloor)
	}
	if c.DecayThreshold <= 0 || c.DecayHorizon <= 0 {
		return fmt.Errorf("decay threshold and horizon must be positive")
	}
	if c.DecayFloor < 0 || c.DecayFloor > 1 {
		return fmt.Errorf("decay floor must be in [0,1], got %v", c.DecayFloor)
	}
	return nil
}
