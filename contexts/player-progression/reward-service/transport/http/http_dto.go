package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AwardRewardRequest struct {
	UserID   string `json:"user_id"`
	ActionID string `json:"action_id"`
}

type AwardRewardResponse struct {
	Status   string `json:"status"`
	Replayed bool   `json:"replayed,omitempty"`
	Data     struct {
		UserID    string `json:"user_id"`
		ActionID  string `json:"action_id"`
		Amount    int64  `json:"amount"`
		TotalXP   int64  `json:"total_xp"`
		Level     int    `json:"level"`
		LeveledUp bool   `json:"leveled_up"`
	} `json:"data"`
}

type WindowRankDTO struct {
	Window   string `json:"window"`
	PeriodID string `json:"period_id"`
	Rank     int    `json:"rank,omitempty"`
	Ranked   bool   `json:"ranked"`
}

type ProfileResponse struct {
	Status string `json:"status"`
	Data   struct {
		UserID      string          `json:"user_id"`
		TotalXP     int64           `json:"total_xp"`
		Level       int             `json:"level"`
		Streak      int             `json:"streak"`
		LastAwardAt string          `json:"last_award_at,omitempty"`
		Ranks       []WindowRankDTO `json:"ranks"`
	} `json:"data"`
}

type RankedEntryDTO struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
}

type LeaderboardResponse struct {
	Status string `json:"status"`
	Data   struct {
		Window   string           `json:"window"`
		PeriodID string           `json:"period_id"`
		Entries  []RankedEntryDTO `json:"entries"`
	} `json:"data"`
}

type RankResponse struct {
	Status string `json:"status"`
	Data   struct {
		Window   string `json:"window"`
		PeriodID string `json:"period_id"`
		UserID   string `json:"user_id"`
		Rank     int    `json:"rank,omitempty"`
		Ranked   bool   `json:"ranked"`
	} `json:"data"`
}

type AroundResponse struct {
	Status string `json:"status"`
	Data   struct {
		Window   string           `json:"window"`
		PeriodID string           `json:"period_id"`
		Entries  []RankedEntryDTO `json:"entries"`
	} `json:"data"`
}

type SnapshotResponse struct {
	Status string `json:"status"`
	Data   struct {
		SnapshotID  string           `json:"snapshot_id"`
		Window      string           `json:"window"`
		PeriodID    string           `json:"period_id"`
		PeriodStart string           `json:"period_start"`
		PeriodEnd   string           `json:"period_end"`
		ArchivedAt  string           `json:"archived_at"`
		Entries     []RankedEntryDTO `json:"entries"`
	} `json:"data"`
}
