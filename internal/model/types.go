package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Run is one evaluation run: a batch of episodes of one scape variant
// against one policy.
type Run struct {
	VersionedRecord
	ID           string  `json:"id"`
	Scape        string  `json:"scape"`
	Variant      string  `json:"variant"`
	Mode         string  `json:"mode"`
	Policy       string  `json:"policy"`
	Seed         uint64  `json:"seed"`
	Episodes     int     `json:"episodes"`
	MeanReward   float64 `json:"mean_reward"`
	BestReward   float64 `json:"best_reward"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// Episode is the outcome of one bounded locomotion attempt.
type Episode struct {
	VersionedRecord
	RunID             string  `json:"run_id"`
	Index             int     `json:"index"`
	Steps             int     `json:"steps"`
	Reward            float64 `json:"reward"`
	TargetSpeed       float64 `json:"target_speed"`
	SpawnYawDeg       float64 `json:"spawn_yaw_deg"`
	FinalSpeedError   float64 `json:"final_speed_error"`
	TerminationReason string  `json:"termination_reason"`
	GoalReached       bool    `json:"goal_reached"`
}

// ScapeSummary tracks the best result seen per scape across runs.
type ScapeSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BestReward  float64 `json:"best_reward"`
}
