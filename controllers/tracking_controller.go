package controller

import (
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mailloom/models"
	"mailloom/repository"
	"mailloom/utils"
)

// transparentPixel is a 1x1 transparent GIF served from the open endpoint
var transparentPixel, _ = base64.StdEncoding.DecodeString(
	"R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// TrackingController handles the public pixel/click/unsubscribe endpoints.
// Engagement hits are logged structured so they can be shipped to analytics.
type TrackingController struct {
	DB     *gorm.DB
	Store  *repository.Store
	Logger *logrus.Logger
}

func NewTrackingController(db *gorm.DB, store *repository.Store, logger *logrus.Logger) *TrackingController {
	return &TrackingController{
		DB:     db,
		Store:  store,
		Logger: logger,
	}
}

// resolve maps the tracking URL path parameters to a campaign and subscriber.
// Unknown shortcodes or tokens return nil without error so endpoints can
// degrade silently.
func (tc *TrackingController) resolve(c *fiber.Ctx) (*models.Campaign, *models.NewsletterSubscriber) {
	var campaign models.Campaign
	if err := tc.DB.Where("shortcode = ?", c.Params("campaign")).First(&campaign).Error; err != nil {
		return nil, nil
	}

	var subscriber models.NewsletterSubscriber
	if err := tc.DB.Where("unsubscribe_token = ?", c.Params("token")).First(&subscriber).Error; err != nil {
		return &campaign, nil
	}

	return &campaign, &subscriber
}

// TrackOpen serves the tracking pixel and records the open. Only the first
// open per (campaign, subscriber) bumps the counter; repeat hits are no-ops.
// The pixel is always returned, even when the identifiers don't resolve, so
// broken mail clients never see an error image.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	campaign, subscriber := tc.resolve(c)
	if campaign != nil && subscriber != nil {
		inserted, err := tc.Store.RecordOpen(&models.CampaignOpen{
			CampaignID:   campaign.ID,
			SubscriberID: subscriber.ID,
			OpenedAt:     time.Now(),
			IPAddress:    c.IP(),
			UserAgent:    c.Get("User-Agent"),
		})
		if err != nil {
			tc.Logger.WithError(err).WithField("campaign_id", campaign.ID).
				Error("Failed to record open")
		} else if inserted {
			if err := tc.DB.Model(campaign).
				UpdateColumn("opens", gorm.Expr("opens + 1")).Error; err != nil {
				tc.Logger.WithError(err).WithField("campaign_id", campaign.ID).
					Error("Failed to bump opens counter")
			}
			tc.Logger.WithFields(logrus.Fields{
				"campaign_id":   campaign.ID,
				"subscriber_id": subscriber.ID,
			}).Info("Open recorded")
		}
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(transparentPixel)
}

// TrackClick counts the click and redirects to the original destination
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing redirect target", nil)
	}
	if decoded, err := url.QueryUnescape(target); err == nil {
		target = decoded
	}
	// Open redirect guard: only http(s) destinations are followed
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid redirect target", nil)
	}

	campaign, subscriber := tc.resolve(c)
	if campaign != nil && subscriber != nil {
		if err := tc.DB.Model(campaign).
			UpdateColumn("clicks", gorm.Expr("clicks + 1")).Error; err != nil {
			tc.Logger.WithError(err).WithField("campaign_id", campaign.ID).
				Error("Failed to bump clicks counter")
		}
		tc.Logger.WithFields(logrus.Fields{
			"campaign_id":   campaign.ID,
			"subscriber_id": subscriber.ID,
			"url":           target,
		}).Info("Click recorded")
	}

	return c.Redirect(target, fiber.StatusFound)
}

// Unsubscribe handles the one-click unsubscribe link from the email footer.
// The counter only moves on the subscribed -> unsubscribed transition, so
// clicking the link twice counts once.
func (tc *TrackingController) Unsubscribe(c *fiber.Ctx) error {
	campaign, subscriber := tc.resolve(c)
	if subscriber == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invalid unsubscribe link", nil)
	}

	if subscriber.Status == models.SubscriberStatusUnsubscribed {
		return c.Type("html").SendString(unsubscribedPage)
	}

	now := time.Now()
	subscriber.Status = models.SubscriberStatusUnsubscribed
	subscriber.UnsubscribedAt = &now
	if err := tc.DB.Save(subscriber).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unsubscribe", err)
	}

	if campaign != nil {
		if err := tc.DB.Model(campaign).
			UpdateColumn("unsubscribes", gorm.Expr("unsubscribes + 1")).Error; err != nil {
			tc.Logger.WithError(err).WithField("campaign_id", campaign.ID).
				Error("Failed to bump unsubscribes counter")
		}
	}

	tc.Logger.WithFields(logrus.Fields{
		"subscriber_id": subscriber.ID,
		"list_id":       subscriber.ListID,
	}).Info("Subscriber unsubscribed")

	return c.Type("html").SendString(unsubscribedPage)
}

const unsubscribedPage = `<!DOCTYPE html>
<html>
<head><title>Unsubscribed</title></head>
<body style="font-family:sans-serif;text-align:center;padding-top:80px">
<h2>You have been unsubscribed</h2>
<p>You will no longer receive emails from this list.</p>
</body>
</html>`
