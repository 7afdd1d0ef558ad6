package domain

import "time"

type Notify struct {
	ID         NotifyID  `gorm:"primaryKey;autoIncrement" json:"id"`
	Message    string    `gorm:"column:notify;type:text;not null" json:"message"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Device     string    `gorm:"type:varchar(255);not null;index" json:"device"`
	ReceivedAt time.Time `gorm:"not null;index" json:"received_at"`
}

func (Notify) TableName() string { return "notifies" }
