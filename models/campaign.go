package models

import (
	"math"
	"time"

	"gorm.io/gorm"

	"mailloom/utils"
)

// Campaign statuses form a linear lifecycle: draft -> scheduled -> sending -> sent
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
)

// Campaign represents a single email broadcast tied to one list
type Campaign struct {
	gorm.Model
	ListID uint `gorm:"not null;index" json:"list_id"`

	Name    string `gorm:"not null" json:"name"`
	Subject string `gorm:"not null" json:"subject"`
	Content string `gorm:"type:text" json:"content"`

	// Block-editor document as produced by the composer frontend
	Blocks []CampaignBlock `gorm:"type:jsonb;serializer:json" json:"blocks"`

	Status      string     `gorm:"default:'draft';index" json:"status"` // draft, scheduled, sending, sent
	ScheduledAt *time.Time `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`

	Shortcode string `gorm:"uniqueIndex;size:8" json:"shortcode"`

	// Statistics (denormalized for performance)
	SentCount    int `gorm:"default:0" json:"sent_count"`
	Opens        int `gorm:"default:0" json:"opens"`
	Clicks       int `gorm:"default:0" json:"clicks"`
	Unsubscribes int `gorm:"default:0" json:"unsubscribes"`
	Bounces      int `gorm:"default:0" json:"bounces"`

	// Relations
	List       NewsletterList `gorm:"foreignKey:ListID" json:"-"`
	OpenEvents []CampaignOpen `gorm:"foreignKey:CampaignID" json:"-"`
}

// CampaignBlock is one node of the block-editor document
type CampaignBlock struct {
	ID   string         `json:"id"`
	Type string         `json:"type"` // text, image, button, divider
	Data map[string]any `json:"data"`
}

func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.Shortcode == "" {
		c.Shortcode = utils.GenerateShortcode()
	}
	return nil
}

// rate returns count/sent_count*100 rounded to two decimals, 0 when nothing was sent
func (c *Campaign) rate(count int) float64 {
	if c.SentCount == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(c.SentCount)*10000) / 100
}

func (c *Campaign) OpenRate() float64        { return c.rate(c.Opens) }
func (c *Campaign) ClickRate() float64       { return c.rate(c.Clicks) }
func (c *Campaign) UnsubscribeRate() float64 { return c.rate(c.Unsubscribes) }
func (c *Campaign) BounceRate() float64      { return c.rate(c.Bounces) }

// CanEdit reports whether the campaign content may still be changed
func (c *Campaign) CanEdit() bool {
	return c.Status != CampaignStatusSent
}

// CanDelete reports whether the campaign may be removed
func (c *Campaign) CanDelete() bool {
	return c.Status == CampaignStatusDraft
}

// Sendable reports whether the status allows a send to be started.
// The subscriber-count half of can_send lives with the caller that can query it.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}

// CampaignOpen records the first open per (campaign, subscriber).
// The composite unique index makes a duplicate pixel hit a no-op insert.
type CampaignOpen struct {
	gorm.Model
	CampaignID   uint `gorm:"not null;uniqueIndex:idx_campaign_opens_campaign_subscriber" json:"campaign_id"`
	SubscriberID uint `gorm:"not null;uniqueIndex:idx_campaign_opens_campaign_subscriber" json:"subscriber_id"`

	OpenedAt  time.Time `gorm:"not null" json:"opened_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}
