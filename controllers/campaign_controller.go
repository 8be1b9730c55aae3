package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailloom/models"
	"mailloom/repository"
	"mailloom/utils"
	"mailloom/worker"
)

type CampaignController struct {
	DB     *gorm.DB
	Store  *repository.Store
	Worker *worker.CampaignWorker
	Logger *log.Logger
}

func NewCampaignController(db *gorm.DB, store *repository.Store, campaignWorker *worker.CampaignWorker, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Store:  store,
		Worker: campaignWorker,
		Logger: logger,
	}
}

type campaignInput struct {
	ListID  uint                   `json:"list_id" validate:"required"`
	Name    string                 `json:"name" validate:"required,max=100"`
	Subject string                 `json:"subject" validate:"required,max=200"`
	Content string                 `json:"content"`
	Blocks  []models.CampaignBlock `json:"blocks"`
}

// campaignView is a campaign flattened together with its derived rates and
// the actions the UI may offer on it
type campaignView struct {
	*models.Campaign
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	UnsubscribeRate float64 `json:"unsubscribe_rate"`
	BounceRate      float64 `json:"bounce_rate"`
	SubscriberCount int64   `json:"subscriber_count"`
	CanEdit         bool    `json:"can_edit"`
	CanSend         bool    `json:"can_send"`
	CanDelete       bool    `json:"can_delete"`
}

func (cc *CampaignController) campaignResponse(campaign *models.Campaign) campaignView {
	var subscriberCount int64
	cc.DB.Model(&models.NewsletterSubscriber{}).
		Where("list_id = ? AND status = ?", campaign.ListID, models.SubscriberStatusSubscribed).
		Count(&subscriberCount)

	return campaignView{
		Campaign:        campaign,
		OpenRate:        campaign.OpenRate(),
		ClickRate:       campaign.ClickRate(),
		UnsubscribeRate: campaign.UnsubscribeRate(),
		BounceRate:      campaign.BounceRate(),
		SubscriberCount: subscriberCount,
		CanEdit:         campaign.CanEdit(),
		CanSend:         campaign.Sendable() && subscriberCount > 0,
		CanDelete:       campaign.CanDelete(),
	}
}

// CreateCampaign creates a new draft campaign
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	var input campaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var list models.NewsletterList
	if err := cc.DB.First(&list, input.ListID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	campaign := models.Campaign{
		ListID:  input.ListID,
		Name:    input.Name,
		Subject: input.Subject,
		Content: input.Content,
		Blocks:  input.Blocks,
		Status:  models.CampaignStatusDraft,
	}

	if err := cc.DB.Create(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(cc.campaignResponse(&campaign)))
}

// GetCampaigns returns campaigns, optionally filtered by list or status
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	query := cc.DB.Model(&models.Campaign{})

	if listID := c.Query("list_id"); listID != "" {
		query = query.Where("list_id = ?", listID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var campaigns []models.Campaign
	if err := query.Order("id desc").Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}

	response := make([]campaignView, len(campaigns))
	for i := range campaigns {
		response[i] = cc.campaignResponse(&campaigns[i])
	}

	return c.JSON(utils.SuccessResponse(response))
}

// GetCampaign returns a single campaign with its stats
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	return c.JSON(utils.SuccessResponse(cc.campaignResponse(&campaign)))
}

// UpdateCampaign updates a campaign that hasn't been sent yet
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	var input campaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if !campaign.CanEdit() {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Sent campaigns cannot be edited", nil)
	}

	campaign.ListID = input.ListID
	campaign.Name = input.Name
	campaign.Subject = input.Subject
	campaign.Content = input.Content
	campaign.Blocks = input.Blocks

	if err := cc.DB.Save(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", err)
	}

	return c.JSON(utils.SuccessResponse(cc.campaignResponse(&campaign)))
}

// DeleteCampaign removes a draft campaign
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if !campaign.CanDelete() {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Only draft campaigns can be deleted", nil)
	}

	tx := cc.DB.Begin()

	if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.CampaignOpen{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign data", err)
	}

	if err := tx.Delete(&campaign).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", err)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Campaign deleted successfully",
	}))
}

// SendCampaign claims the campaign for sending and kicks the fan-out off in
// the background. The claim is a compare-and-swap, so a double click on Send
// results in exactly one run.
func (cc *CampaignController) SendCampaign(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.Store.GetCampaign(campaignID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if !campaign.Sendable() {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be sent from status "+campaign.Status, nil)
	}

	var subscriberCount int64
	cc.DB.Model(&models.NewsletterSubscriber{}).
		Where("list_id = ? AND status = ?", campaign.ListID, models.SubscriberStatusSubscribed).
		Count(&subscriberCount)
	if subscriberCount == 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign has no subscribed recipients", nil)
	}

	previous, claimed, err := cc.Store.ClaimCampaignForSending(campaignID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start sending", err)
	}
	if !claimed {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign is already being sent", nil)
	}

	cc.Logger.Printf("Campaign %d claimed for sending (%d recipients)", campaignID, subscriberCount)

	go func() {
		if err := cc.Worker.Run(campaignID, previous); err != nil {
			cc.Logger.Printf("Campaign %d send failed: %v", campaignID, err)
		}
	}()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message":          "Campaign sending started",
		"subscriber_count": subscriberCount,
	}))
}

// ScheduleCampaign sets a future send time on a draft campaign
func (cc *CampaignController) ScheduleCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	var input struct {
		ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.ScheduledAt.Before(time.Now()) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Scheduled time must be in the future", nil)
	}

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if !campaign.Sendable() {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be scheduled from status "+campaign.Status, nil)
	}

	campaign.Status = models.CampaignStatusScheduled
	campaign.ScheduledAt = &input.ScheduledAt
	if err := cc.DB.Save(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to schedule campaign", err)
	}

	return c.JSON(utils.SuccessResponse(cc.campaignResponse(&campaign)))
}

// UnscheduleCampaign returns a scheduled campaign to draft
func (cc *CampaignController) UnscheduleCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if campaign.Status != models.CampaignStatusScheduled {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign is not scheduled", nil)
	}

	campaign.Status = models.CampaignStatusDraft
	campaign.ScheduledAt = nil
	if err := cc.DB.Save(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unschedule campaign", err)
	}

	return c.JSON(utils.SuccessResponse(cc.campaignResponse(&campaign)))
}

// GetCampaignStats returns just the counters and derived rates
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"sent_count":       campaign.SentCount,
		"opens":            campaign.Opens,
		"clicks":           campaign.Clicks,
		"unsubscribes":     campaign.Unsubscribes,
		"bounces":          campaign.Bounces,
		"open_rate":        campaign.OpenRate(),
		"click_rate":       campaign.ClickRate(),
		"unsubscribe_rate": campaign.UnsubscribeRate(),
		"bounce_rate":      campaign.BounceRate(),
		"status":           campaign.Status,
		"sent_at":          campaign.SentAt,
	}))
}
