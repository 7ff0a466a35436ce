package main

import (
	"encoding/json"
	"net/http"

	"steps-rewards/internal/domain"
	httpinfra "steps-rewards/internal/infra/http"
)

type claimRequest struct {
	Date string `json:"date,omitempty"`
}

type claimResponse struct {
	OK           bool             `json:"ok"`
	Date         string           `json:"date"`
	Reason       string           `json:"reason,omitempty"`
	RewardEarned string           `json:"reward_earned,omitempty"`
	Result       *rewardResultDTO `json:"result,omitempty"`
}

type rewardResultDTO struct {
	UID             string   `json:"uid"`
	Date            string   `json:"date"`
	Status          string   `json:"status"`
	RawCount        int64    `json:"raw_count"`
	CountedActivity int64    `json:"counted_activity"`
	RewardPreview   string   `json:"reward_preview"`
	RewardEarned    string   `json:"reward_earned"`
	LimitReason     string   `json:"limit_reason"`
	DailyCap        int64    `json:"daily_cap"`
	BonusFlags      []string `json:"bonus_flags,omitempty"`
	RunID           string   `json:"run_id"`
}

func newRewardResultDTO(res domain.RewardResult) *rewardResultDTO {
	flags := make([]string, 0, len(res.BonusFlags))
	for _, flag := range res.BonusFlags {
		flags = append(flags, string(flag))
	}
	return &rewardResultDTO{
		UID:             res.UID,
		Date:            domain.DateKey(res.Date),
		Status:          string(res.Status),
		RawCount:        res.RawCount,
		CountedActivity: res.CountedActivity,
		RewardPreview:   res.RewardPreview.StringFixed(6),
		RewardEarned:    res.RewardEarned.StringFixed(6),
		LimitReason:     string(res.Limit.Reason),
		DailyCap:        res.Limit.DailyCap,
		BonusFlags:      flags,
		RunID:           res.RunID,
	}
}

type balanceResponse struct {
	UID         string `json:"uid"`
	Personal    string `json:"personal"`
	Family      string `json:"family"`
	TotalEarned string `json:"total_earned"`
}

type adminRunRequest struct {
	Date  string `json:"date"`
	Force bool   `json:"force,omitempty"`
}

type adminRunResponse struct {
	Date  string `json:"date"`
	RunID string `json:"run_id"`
}

type statsDTO struct {
	Date                  string `json:"date"`
	RunID                 string `json:"run_id"`
	Status                string `json:"status"`
	UsersScanned          int64  `json:"users_scanned"`
	UsersEligible         int64  `json:"users_eligible"`
	UsersRewarded         int64  `json:"users_rewarded"`
	TotalRawActivity      int64  `json:"total_raw_activity"`
	TotalWeightedActivity string `json:"total_weighted_activity"`
	TotalDistributed      string `json:"total_distributed"`
	RateDay               string `json:"rate_day"`
}

func newStatsDTO(stats domain.DailyStats) statsDTO {
	return statsDTO{
		Date:                  domain.DateKey(stats.Date),
		RunID:                 stats.RunID,
		Status:                string(stats.Status),
		UsersScanned:          stats.UsersScanned,
		UsersEligible:         stats.UsersEligible,
		UsersRewarded:         stats.UsersRewarded,
		TotalRawActivity:      stats.TotalRawActivity,
		TotalWeightedActivity: stats.TotalWeightedActivity.String(),
		TotalDistributed:      stats.TotalDistributed.StringFixed(6),
		RateDay:               stats.RateDay.String(),
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(httpinfra.ErrorResponse{
		Error:     message,
		RequestID: httpinfra.RequestID(r),
	})
}
