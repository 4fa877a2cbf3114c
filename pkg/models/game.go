package models

import "time"

// Game is one catalog entry. Path is the stable identifier for the lifetime
// of the entry and the sole key used for table reconciliation.
type Game struct {
	Path        string `json:"path"`
	Platform    string `json:"platform"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Developer   string `json:"developer"`
	Publisher   string `json:"publisher"`
	Genre       string `json:"genre"`
	Rating      string `json:"rating"`
	Players     string `json:"players"`
	ReleaseDate string `json:"release_date"`
	ExternalID  string `json:"external_id"`

	// Media reference fields. Paths into the server's media store; the
	// console never touches the bytes behind them.
	BoxartPath string `json:"boxart_path"`
	VideoPath  string `json:"video_path"`
	WheelPath  string `json:"wheel_path"`
	ManualPath string `json:"manual_path"`

	// Bookkeeping fields outside the change-detection subset.
	FileSize    int64     `json:"file_size"`
	LastScanned time.Time `json:"last_scanned"`

	// Dirty marks unpersisted local edits. Never serialized.
	Dirty bool `json:"-"`
}

// Clone returns a shallow copy. Games are passed between the synchronizer
// and appliers by pointer; cloning keeps the authoritative cache isolated
// from renderer mutation.
func (g *Game) Clone() *Game {
	c := *g
	return &c
}
