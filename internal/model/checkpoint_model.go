package model

import (
	"time"

	"gorm.io/datatypes"
)

// Checkpoint is the durable projection of an agent session, one row per thread.
type Checkpoint struct {
	ThreadID   string         `gorm:"type:varchar(255);primaryKey"`
	Query      string         `gorm:"type:text"`
	Phase      string         `gorm:"type:varchar(32);index"`
	Iterations int            `gorm:"default:0"`
	State      datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
}

func (Checkpoint) TableName() string {
	return "agent_checkpoints"
}
