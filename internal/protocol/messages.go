package protocol

// HELLO (policy -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PolicyName      string `json:"policy_name"`
	Variant         string `json:"variant,omitempty"`
}

// WELCOME (server -> policy)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Variant         string   `json:"variant"`
	ObservationSize int      `json:"observation_size"`
	ActionSize      int      `json:"action_size"`
	PartOrder       []string `json:"part_order"`
	Episodes        int      `json:"episodes"`
}

// OBS (server -> policy): one simulation step's observation vector.
// Done marks the final message of an episode; Actions are ignored for it.
type ObsMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Episode         int       `json:"episode"`
	Step            int       `json:"step"`
	Observations    []float64 `json:"observations"`
	Reward          float64   `json:"reward"`
	Done            bool      `json:"done"`
	Reason          string    `json:"reason,omitempty"`
}

// ACT (policy -> server)
type ActMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Episode         int       `json:"episode"`
	Step            int       `json:"step"`
	Actions         []float64 `json:"actions"`
}

// ERROR (server -> policy)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// BYE (server -> policy): all requested episodes are complete.
type ByeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Episodes        int     `json:"episodes"`
	MeanReward      float64 `json:"mean_reward"`
	BestReward      float64 `json:"best_reward"`
}
