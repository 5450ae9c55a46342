// Package scoring derives a user's trust score from profile, verification
// and activity signals. Compute is a pure function of (user, now, config):
// no I/O, no hidden state, so identical inputs always reproduce the same
// result and audit rows stay replayable.
package scoring

import (
	"math"
	"time"

	"github.com/d60-Lab/trust-engine/internal/model"
)

// Point splits inside the profile sub-score (sums to 100).
const (
	photosMaxPoints    = 60.0
	photosCap          = 6
	bioPoints          = 20.0
	interestsMaxPoints = 20.0
	interestsCap       = 5
)

// Point splits inside the verification sub-score (sums to 100).
const (
	selfiePoints = 50.0
	idPoints     = 50.0
)

// Point splits inside the engagement sub-score.
const (
	streakMaxPoints    = 50.0
	streakCapDays      = 30
	responseMaxPoints  = 50.0
	reportsPenaltyMax  = 40.0
	reportsPenaltyCap  = 5
)

// Badge identifiers. Predicates are evaluated in Compute and documented there;
// the set below is exhaustive.
const (
	BadgeFullyVerified = "fully_verified" // verification sub-score == 100
	BadgeHighlyActive  = "highly_active"  // activity sub-score >= HighlyActiveMin
	BadgeTrustedMember = "trusted_member" // total >= TrustedMemberMin
	BadgeVerifiedUser  = "verified_user"  // total >= VerifiedUserMin and id verified
)

// Result is the full score breakdown for one computation.
type Result struct {
	Profile      float64
	Verification float64
	Activity     float64
	Engagement   float64

	RawTotal        float64 // weighted sum before the inactivity multiplier
	DecayMultiplier float64
	Total           float64

	Badges []string
}

// Breakdown flattens the result into named sub-scores for persistence.
func (r Result) Breakdown() model.Breakdown {
	return model.Breakdown{
		"profile":          r.Profile,
		"verification":     r.Verification,
		"activity":         r.Activity,
		"engagement":       r.Engagement,
		"raw_total":        r.RawTotal,
		"decay_multiplier": r.DecayMultiplier,
	}
}

// Compute scores a user at the given reference time.
func Compute(u *model.User, now time.Time, cfg Config) Result {
	res := Result{
		Profile:      profileScore(u),
		Verification: verificationScore(u),
		Activity:     activityScore(u, now, cfg),
		Engagement:   engagementScore(u),
	}

	res.RawTotal = round2(clamp(
		res.Profile*cfg.ProfileWeight+
			res.Verification*cfg.VerificationWeight+
			res.Activity*cfg.ActivityWeight+
			res.Engagement*cfg.EngagementWeight,
		0, 100))

	res.DecayMultiplier = decayMultiplier(u, now, cfg)
	res.Total = round2(clamp(res.RawTotal*res.DecayMultiplier, 0, 100))
	res.Badges = badges(res, u, cfg)
	return res
}

// profileScore rewards completeness: photos up to the cap, a filled bio,
// and listed interests.
func profileScore(u *model.User) float64 {
	photos := math.Min(float64(u.Photos), photosCap) / photosCap * photosMaxPoints
	var bio float64
	if u.BioFilled {
		bio = bioPoints
	}
	interests := math.Min(float64(u.InterestsCount), interestsCap) / interestsCap * interestsMaxPoints
	return round2(clamp(photos+bio+interests, 0, 100))
}

func verificationScore(u *model.User) float64 {
	var total float64
	if u.SelfieVerified {
		total += selfiePoints
	}
	if u.IDVerified {
		total += idPoints
	}
	return round2(clamp(total, 0, 100))
}

// activityScore is a monotonically non-increasing function of time since
// last activity: full marks inside the recent window, a linear slide down to
// the floor at the far window, the floor forever after. Unknown last-active
// scores zero.
func activityScore(u *model.User, now time.Time, cfg Config) float64 {
	if u.LastActiveAt == nil {
		return 0
	}
	inactive := now.Sub(*u.LastActiveAt)
	if inactive <= cfg.ActivityFullWindow {
		return 100
	}
	if inactive >= cfg.ActivityFarWindow {
		return round2(cfg.ActivityFloor)
	}
	span := cfg.ActivityFarWindow - cfg.ActivityFullWindow
	frac := float64(inactive-cfg.ActivityFullWindow) / float64(span)
	return round2(100 - frac*(100-cfg.ActivityFloor))
}

// engagementScore folds the behavioural signals (login streak, response
// rate, reports received) into one sub-score. Reports subtract, floor zero.
func engagementScore(u *model.User) float64 {
	streak := math.Min(float64(u.LoginStreak), streakCapDays) / streakCapDays * streakMaxPoints
	resp := clamp(float64(u.ResponseRatePct), 0, 100) / 100 * responseMaxPoints
	penalty := math.Min(float64(u.ReportsCount), reportsPenaltyCap) / reportsPenaltyCap * reportsPenaltyMax
	return round2(clamp(streak+resp-penalty, 0, 100))
}

// decayMultiplier applies the long-inactivity penalty to the combined score.
// Users with no recorded activity are not penalised (policy carried over
// from the first version of the engine).
func decayMultiplier(u *model.User, now time.Time, cfg Config) float64 {
	if u.LastActiveAt == nil {
		return 1.0
	}
	inactive := now.Sub(*u.LastActiveAt)
	if inactive <= cfg.DecayThreshold {
		return 1.0
	}
	excess := inactive - cfg.DecayThreshold
	mult := 1.0 - float64(excess)/float64(cfg.DecayHorizon)
	return round4(math.Max(cfg.DecayFloor, mult))
}

// badges is evaluated on the final result; the order of the returned slice
// is fixed so repeated computations serialize identically.
func badges(res Result, u *model.User, cfg Config) []string {
	out := make([]string, 0, 4)
	if res.Verification == 100 {
		out = append(out, BadgeFullyVerified)
	}
	if res.Activity >= cfg.HighlyActiveMin {
		out = append(out, BadgeHighlyActive)
	}
	if res.Total >= cfg.TrustedMemberMin {
		out = append(out, BadgeTrustedMember)
	}
	if res.Total >= cfg.VerifiedUserMin && u.IDVerified {
		out = append(out, BadgeVerifiedUser)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
