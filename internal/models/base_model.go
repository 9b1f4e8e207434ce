package models

import (
	"time"
)

// Timestamps provides the bookkeeping columns shared by the domain tables.
type Timestamps struct {
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
