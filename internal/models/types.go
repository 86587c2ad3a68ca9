package models

// Hint is one guessable entry on the wheel. Text is unique across live
// hints under case-insensitive comparison: the NOCASE collation makes
// the unique index enforce it even when two writers race past the
// store's friendlier pre-insert check.
type Hint struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Faculty string `gorm:"not null" json:"faculty"`
	Text    string `gorm:"type:TEXT COLLATE NOCASE;not null;uniqueIndex" json:"text"`
}

func (Hint) TableName() string { return "hints" }

// User is the quota ledger row for one self-reported user id. The spin
// and add counters are independent windows over the same record. Window
// starts are unix milliseconds, zero when no window is open.
type User struct {
	UserID          string `gorm:"primaryKey" json:"user_id"`
	SpinCount       int    `gorm:"not null;default:0" json:"spin_count"`
	SpinWindowStart int64  `gorm:"not null;default:0" json:"spin_window_start"`
	AddCount        int    `gorm:"not null;default:0" json:"add_count"`
	AddWindowStart  int64  `gorm:"not null;default:0" json:"add_window_start"`
}

func (User) TableName() string { return "users" }

// Activity is an append-only log row for a pick or a contribution.
// HintText is denormalized so history survives hint deletion and tracks
// edits; OwnerUserID is set for contributions only, so the selection
// engine can exclude "hints I contributed" without a durable owner
// field on Hint itself.
type Activity struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	UserID       string `gorm:"index;not null"`
	HintID       int64  `gorm:"index;not null"`
	HintText     string `gorm:"not null"`
	ActivityType string `gorm:"not null"`
	Timestamp    int64  `gorm:"index;not null"`
	OwnerUserID  string
}

func (Activity) TableName() string { return "activities" }

// HistoryEntry is the spin-history wire row: an activity left-joined
// with the current faculty of its hint.
type HistoryEntry struct {
	HintID       int64   `gorm:"column:hint_id" json:"hint_id"`
	HintText     string  `gorm:"column:hint_text" json:"hint_text"`
	Timestamp    int64   `gorm:"column:timestamp" json:"timestamp"`
	ActivityType string  `gorm:"column:activity_type" json:"activity_type"`
	OwnerUserID  string  `gorm:"column:owner_user_id" json:"hint_owner_user_id,omitempty"`
	Faculty      *string `gorm:"column:faculty" json:"faculty"`
}
