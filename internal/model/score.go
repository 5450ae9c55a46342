package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Breakdown maps sub-score names to their computed values.
// Stored as a JSON text column.
type Breakdown map[string]float64

func (b Breakdown) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (b *Breakdown) Scan(value interface{}) error {
	if value == nil {
		*b = Breakdown{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("unsupported breakdown column type %T", value)
	}
}

// Badges is the set of earned badge identifiers, stored as a JSON text column.
type Badges []string

func (bs Badges) Value() (driver.Value, error) {
	if bs == nil {
		return "[]", nil
	}
	data, err := json.Marshal(bs)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (bs *Badges) Scan(value interface{}) error {
	if value == nil {
		*bs = Badges{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, bs)
	case string:
		return json.Unmarshal([]byte(v), bs)
	default:
		return fmt.Errorf("unsupported badges column type %T", value)
	}
}

// TrustScore is the current score per user, overwritten on every recompute.
type TrustScore struct {
	UserID     string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Score      float64   `json:"score"`
	Breakdown  Breakdown `gorm:"type:text" json:"breakdown"`
	Badges     Badges    `gorm:"type:text" json:"badges"`
	ComputedAt time.Time `json:"computed_at"`
}

func (TrustScore) TableName() string { return "trust_scores" }
