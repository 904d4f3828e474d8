package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is a subscriber, synced from the identity provider on first login.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the explicit table name.
func (User) TableName() string {
	return "users"
}

// UserMonitorsResearcher is the fan-out list for notifications.
type UserMonitorsResearcher struct {
	UserID            uint      `json:"user_id" gorm:"primaryKey"`
	ResearcherOrcidID string    `json:"researcher_orcid_id" gorm:"column:researcher_orcid_id;primaryKey;size:32;index"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName returns the explicit table name.
func (UserMonitorsResearcher) TableName() string {
	return "user_monitors_researchers"
}

// UserPushSubscription stores the browser PushSubscription JSON. One per user.
type UserPushSubscription struct {
	UserID       uint           `json:"user_id" gorm:"primaryKey"`
	Subscription datatypes.JSON `json:"subscription" gorm:"type:jsonb;not null"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the explicit table name.
func (UserPushSubscription) TableName() string {
	return "user_push_subscriptions"
}

// Subscriber is a user monitoring a researcher, as needed by the notifier.
type Subscriber struct {
	UserID           uint
	Email            string
	Name             string
	PushSubscription datatypes.JSON
}

// HasPush reports whether the subscriber registered a push endpoint.
func (s Subscriber) HasPush() bool {
	return len(s.PushSubscription) > 0
}
