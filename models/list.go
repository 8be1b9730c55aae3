package models

import (
	"time"

	"gorm.io/gorm"

	"mailloom/utils"
)

// Subscriber statuses
const (
	SubscriberStatusSubscribed   = "subscribed"
	SubscriberStatusUnsubscribed = "unsubscribed"
	SubscriberStatusPending      = "pending"
)

// NewsletterList represents a list of subscribers sharing a send-from identity
type NewsletterList struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	FromName    string `gorm:"not null" json:"from_name"`
	FromEmail   string `gorm:"not null" json:"from_email"`

	// Public identifier used in signup/subscribe URLs
	Shortcode string `gorm:"uniqueIndex;size:8" json:"shortcode"`

	// Relations
	Subscribers []NewsletterSubscriber `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE" json:"subscribers,omitempty"`
	Campaigns   []Campaign             `gorm:"foreignKey:ListID" json:"campaigns,omitempty"`
}

// BeforeCreate assigns a shortcode if one wasn't supplied. Collision retries
// happen at the repository layer where the unique index violation is visible.
func (l *NewsletterList) BeforeCreate(tx *gorm.DB) error {
	if l.Shortcode == "" {
		l.Shortcode = utils.GenerateShortcode()
	}
	return nil
}

// NewsletterSubscriber represents a single recipient belonging to one list
type NewsletterSubscriber struct {
	gorm.Model
	ListID uint `gorm:"not null;index;uniqueIndex:idx_subscribers_list_email" json:"list_id"`

	Email     string `gorm:"not null;uniqueIndex:idx_subscribers_list_email" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Status         string     `gorm:"default:'subscribed'" json:"status"` // subscribed, unsubscribed, pending
	SubscribedAt   *time.Time `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`

	VerificationToken string `gorm:"index;size:64" json:"-"`
	UnsubscribeToken  string `gorm:"index;size:64" json:"-"`

	// Relations
	List NewsletterList `gorm:"foreignKey:ListID" json:"-"`
}

// BeforeCreate fills in tokens and the subscription timestamp when absent
func (s *NewsletterSubscriber) BeforeCreate(tx *gorm.DB) error {
	if s.VerificationToken == "" {
		s.VerificationToken = utils.GenerateToken()
	}
	if s.UnsubscribeToken == "" {
		s.UnsubscribeToken = utils.GenerateToken()
	}
	if s.SubscribedAt == nil && s.Status == SubscriberStatusSubscribed {
		now := time.Now()
		s.SubscribedAt = &now
	}
	return nil
}
