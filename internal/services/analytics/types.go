// Package analytics turns the channel corpus into alt-likelihood scores,
// similar-user lists, and similarity groups, and caches the unfiltered view
package analytics

// SimilarUser is one entry of a user's similar-users list, similarity as a
// percentage in [0, 100]
type SimilarUser struct {
	Username   string  `json:"username"`
	Similarity float64 `json:"similarity"`
}

// UserStat is the per-user analysis row served to callers
type UserStat struct {
	Username      string        `json:"username"`
	ChatCount     int           `json:"chat_count"`
	AltLikelihood float64       `json:"alt_likelihood"`
	SimilarUsers  []SimilarUser `json:"similar_users"`
	LastUpdated   string        `json:"last_updated,omitempty"`
}

// GroupView is one similarity group served to callers
type GroupView struct {
	GroupID       int      `json:"group_id"`
	Members       []string `json:"members"`
	MaxSimilarity float64  `json:"max_similarity"`
}

// Status summarizes the analytics state of one channel
type Status struct {
	Channel           string `json:"channel"`
	LastProcessedDate string `json:"last_processed_date"`
	TotalMessages     int    `json:"total_messages"`
	UpdatedAt         string `json:"updated_at"`
}
