package models

import (
	"time"

	"gorm.io/datatypes"
)

// DialogSession persists a user's in-progress dialog for the database session backend.
type DialogSession struct {
	UserID    int64                                 `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Step      string                                `gorm:"column:step;size:64;not null"`
	Data      datatypes.JSONType[map[string]string] `gorm:"column:data"`
	UpdatedAt time.Time                             `gorm:"index"`
}

func (DialogSession) TableName() string { return "dialog_sessions" }
