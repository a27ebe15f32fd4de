// Package pipeline orchestrates ingestion and analysis: one serialized run
// per channel plus side-effect-free filtered reads
package pipeline

import (
	"altscope/internal/services/analytics"
	"altscope/internal/services/messages"
)

// ChannelSummary is the per-channel slice of a processing run
type ChannelSummary struct {
	Channel       string `json:"channel"`
	FilesScanned  int    `json:"files_scanned"`
	NewLines      int64  `json:"new_lines"`
	ParseFailures int    `json:"parse_failures"`
	UsersAffected int    `json:"users_affected"`
	Skipped       bool   `json:"skipped,omitempty"` // busy channel left alone during an all-channel run
}

// ProcessingSummary is the outcome of one run_once invocation
type ProcessingSummary struct {
	FilesScanned  int              `json:"files_scanned"`
	NewLines      int64            `json:"new_lines"`
	ParseFailures int              `json:"parse_failures"`
	UsersAffected int              `json:"users_affected"`
	Channels      []ChannelSummary `json:"channels"`
}

// ChannelOverview is the dashboard row for one channel
type ChannelOverview struct {
	Channel       string           `json:"channel"`
	TotalMessages int              `json:"total_messages"`
	FirstDate     string           `json:"first_date,omitempty"`
	LastDate      string           `json:"last_date,omitempty"`
	Status        analytics.Status `json:"status"`
}

// UserDetail is the full per-user view served by the detail endpoint
type UserDetail struct {
	Stats    analytics.UserStat     `json:"stats"`
	Messages []MessageView          `json:"messages"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Total    int                    `json:"total"`
	Activity []messages.DayActivity `json:"activity"`
}

// MessageView is one message row in the user detail view
type MessageView struct {
	TS      string `json:"ts"`
	Date    string `json:"date"`
	Message string `json:"message"`
}
