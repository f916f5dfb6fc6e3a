package models

// RealtimeStats is the snapshot served by the realtime endpoint. ByArea only
// contains areas whose count cleared the cohort threshold.
type RealtimeStats struct {
	TotalTraining int64            `json:"total_training"`
	ByArea        map[string]int64 `json:"by_area"`
	IsPeakTime    bool             `json:"peak_time"`
}

// Insight is a derived motivational message.
type Insight struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// RankingEntry is one row of an anonymized leaderboard: position and value
// only, plus a coarse label (class or achievement name, never a person).
type RankingEntry struct {
	Position int    `json:"position"`
	Value    int64  `json:"value"`
	Label    string `json:"label,omitempty"`
}

// Ranking is a full leaderboard snapshot.
type Ranking struct {
	Type     string         `json:"type"`
	Period   string         `json:"period"`
	Rankings []RankingEntry `json:"rankings"`
	Unit     string         `json:"unit"`
}
