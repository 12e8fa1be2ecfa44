package database

import "time"

// Record is the persisted trace of one successful generation.
type Record struct {
	ID              string    `json:"id" db:"id"`
	URL             string    `json:"url" db:"url"`
	ForegroundColor string    `json:"foregroundColor" db:"foreground_color"`
	BackgroundColor string    `json:"backgroundColor" db:"background_color"`
	Size            int       `json:"size" db:"size"`
	Format          string    `json:"format" db:"format"`
	HasLogo         bool      `json:"hasLogo" db:"has_logo"`
	Logo            string    `json:"logo,omitempty" db:"logo"` // base64 snapshot of the uploaded logo
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

func (r *Record) clone() *Record {
	c := *r
	return &c
}
