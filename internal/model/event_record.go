package model

import "time"

// EventRecord is the persisted form of an event: the whole event is stored as a
// JSON document and overwritten on every save.
type EventRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:256;not null"`
	Payload   []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}
