package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ViewPrefs is the locally persisted console view state: last platform,
// column layout, sort and panel sizing. One row per profile.
type ViewPrefs struct {
	bun.BaseModel `bun:"table:view_prefs,alias:vp"`

	ID           int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	Profile      string    `bun:",notnull,unique" json:"profile"`
	LastPlatform string    `bun:"" json:"last_platform"`
	ColumnLayout string    `bun:"" json:"column_layout"`
	SortField    string    `bun:",notnull,default:'name'" json:"sort_field"`
	SortAsc      bool      `bun:",notnull,default:true" json:"sort_asc"`
	PanelSizes   string    `bun:"" json:"panel_sizes"`
}

// DefaultViewPrefs returns a ViewPrefs with default values.
func DefaultViewPrefs() *ViewPrefs {
	return &ViewPrefs{
		Profile:   "default",
		SortField: "name",
		SortAsc:   true,
	}
}
