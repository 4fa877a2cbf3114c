package models

// MatchCandidate is one externally-sourced candidate for a local game.
// String fields left empty by the scraping provider are treated as absent
// and never overwrite local values on commit.
type MatchCandidate struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	AltNameMatch bool    `json:"alt_name_match"`
	Developer    string  `json:"developer"`
	Publisher    string  `json:"publisher"`
	Genre        string  `json:"genre"`
	Rating       string  `json:"rating"`
	Players      string  `json:"players"`
	ExternalID   string  `json:"external_id"`
	Description  string  `json:"description"`
}

// MatchRequest is a pending disambiguation surfaced by another session.
// Candidates may arrive preloaded; when empty they are fetched on demand.
type MatchRequest struct {
	ID          string           `json:"id"`
	Platform    string           `json:"platform"`
	GamePath    string           `json:"game_path"`
	GameName    string           `json:"game_name"`
	Candidates  []MatchCandidate `json:"candidates,omitempty"`
	RequestedBy string           `json:"requested_by"`
}
