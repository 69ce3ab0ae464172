package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	DeviceID  string    `gorm:"size:128;index"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Events []SubscriptionEvent `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionEvent links a subscription to an event it wants updates for. The event id
// is not a foreign key so that events may live outside the SQL database.
type SubscriptionEvent struct {
	Endpoint string `gorm:"primaryKey"`
	EventID  string `gorm:"primaryKey;size:64;index"`
}
