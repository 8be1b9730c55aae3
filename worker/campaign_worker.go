package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"mailloom/events"
	"mailloom/models"
	"mailloom/utils"
)

// CampaignStore is the persistence surface the send fan-out needs
type CampaignStore interface {
	GetCampaign(id uint) (*models.Campaign, error)
	GetList(id uint) (*models.NewsletterList, error)
	SubscribedByListID(listID uint) ([]models.NewsletterSubscriber, error)
	FinalizeCampaignSend(campaign *models.Campaign) error
	ClaimCampaignForSending(id uint) (previous string, claimed bool, err error)
	DueScheduledCampaignIDs(now time.Time) ([]uint, error)
}

// CampaignWorker fans a campaign out to its subscribed recipients, one mail
// per subscriber. Recipient failures are tallied as bounces and never abort
// the run. The draft/scheduled -> sending claim happens before Run: in the
// send controller for manual sends, or in the scheduler tick here.
type CampaignWorker struct {
	Store  CampaignStore
	Mailer utils.Mailer
	Events events.Publisher
	Logger *log.Logger

	BaseURL string
	// Artificial pause between recipients, local development only
	SendDelay time.Duration
}

func NewCampaignWorker(store CampaignStore, mailer utils.Mailer, publisher events.Publisher, logger *log.Logger, baseURL string, sendDelay time.Duration) *CampaignWorker {
	return &CampaignWorker{
		Store:     store,
		Mailer:    mailer,
		Events:    publisher,
		Logger:    logger,
		BaseURL:   baseURL,
		SendDelay: sendDelay,
	}
}

// Start runs the scheduler loop that promotes due scheduled campaigns
func (cw *CampaignWorker) Start(ctx context.Context) {
	cw.Logger.Println("Campaign worker started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Println("Campaign worker shutting down...")
			return
		case <-ticker.C:
			cw.processDueCampaigns()
		}
	}
}

func (cw *CampaignWorker) processDueCampaigns() {
	ids, err := cw.Store.DueScheduledCampaignIDs(time.Now())
	if err != nil {
		cw.Logger.Printf("Error fetching due campaigns: %v", err)
		return
	}

	for _, id := range ids {
		previous, claimed, err := cw.Store.ClaimCampaignForSending(id)
		if err != nil {
			cw.Logger.Printf("Error claiming campaign %d: %v", id, err)
			continue
		}
		if !claimed {
			continue
		}
		if err := cw.Run(id, previous); err != nil {
			cw.Logger.Printf("Campaign %d send failed: %v", id, err)
		}
	}
}

// Run executes the fan-out for a campaign already claimed into "sending".
// It processes whatever subscriber set exists at execution time, which may
// differ from the count seen at enqueue; an empty set still completes the
// campaign.
func (cw *CampaignWorker) Run(campaignID uint, previousStatus string) error {
	campaign, err := cw.Store.GetCampaign(campaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign %d: %w", campaignID, err)
	}

	list, err := cw.Store.GetList(campaign.ListID)
	if err != nil {
		return fmt.Errorf("failed to load list %d: %w", campaign.ListID, err)
	}

	cw.Events.Publish(events.Event{
		Name: events.EventCampaignStatusChanged,
		Payload: events.CampaignStatusChangedPayload{
			Campaign:       campaign,
			PreviousStatus: previousStatus,
			NewStatus:      models.CampaignStatusSending,
		},
	})

	subscribers, err := cw.Store.SubscribedByListID(campaign.ListID)
	if err != nil {
		return fmt.Errorf("failed to load subscribers for list %d: %w", campaign.ListID, err)
	}

	cw.Logger.Printf("Sending campaign %d to %d subscribers", campaign.ID, len(subscribers))

	for _, sub := range subscribers {
		body := utils.RenderForSubscriber(campaign.Content, sub.FirstName, sub.LastName, sub.Email)
		body = utils.InjectTracking(body, cw.BaseURL, campaign.Shortcode, sub.UnsubscribeToken)

		if err := cw.Mailer.Send(list.FromName, list.FromEmail, sub.Email, campaign.Subject, body); err != nil {
			campaign.Bounces++
			cw.Logger.Printf("Send to %s failed for campaign %d: %v", sub.Email, campaign.ID, err)
		} else {
			campaign.SentCount++
		}

		if cw.SendDelay > 0 {
			time.Sleep(cw.SendDelay)
		}
	}

	now := time.Now()
	campaign.Status = models.CampaignStatusSent
	campaign.SentAt = &now
	// Selective write: the tracking endpoints bump opens/clicks/unsubscribes
	// on the live row while the loop runs, so only the fields this run owns
	// may be persisted here
	if err := cw.Store.FinalizeCampaignSend(campaign); err != nil {
		return fmt.Errorf("failed to persist campaign %d results: %w", campaign.ID, err)
	}

	cw.Logger.Printf("Campaign %d sent: %d delivered, %d bounced",
		campaign.ID, campaign.SentCount, campaign.Bounces)

	cw.Events.Publish(events.Event{
		Name: events.EventCampaignStatusChanged,
		Payload: events.CampaignStatusChangedPayload{
			Campaign:       campaign,
			PreviousStatus: models.CampaignStatusSending,
			NewStatus:      models.CampaignStatusSent,
		},
	})
	return nil
}
