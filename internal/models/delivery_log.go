package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryLogModel is the audit row for one notification attempt. It is
// written before any transport is tried and only its Sent and Error columns
// change afterwards.
type DeliveryLogModel struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Subject    string    `json:"subject"    gorm:"size:255;not null"`
	Body       string    `json:"body"       gorm:"type:text"`
	FromEmail  string    `json:"from_email" gorm:"size:254"`
	Recipients string    `json:"recipients" gorm:"type:text"`
	Sent       bool      `json:"sent"       gorm:"not null;default:false;index"`
	Error      string    `json:"error"      gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"<-:create;index"`
}

func (DeliveryLogModel) TableName() string { return "delivery_logs" }

func (d *DeliveryLogModel) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
