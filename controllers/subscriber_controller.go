package controller

import (
	"log"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailloom/models"
	"mailloom/utils"
)

type SubscriberController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSubscriberController(db *gorm.DB, logger *log.Logger) *SubscriberController {
	return &SubscriberController{
		DB:     db,
		Logger: logger,
	}
}

// GetSubscribers returns a paginated page of a list's subscribers
func (sc *SubscriberController) GetSubscribers(c *fiber.Ctx) error {
	listID := c.Params("listId")

	var list models.NewsletterList
	if err := sc.DB.First(&list, listID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}

	query := sc.DB.Model(&models.NewsletterSubscriber{}).Where("list_id = ?", list.ID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	query.Count(&total)

	var subscribers []models.NewsletterSubscriber
	if err := query.Order("id desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&subscribers).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch subscribers", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  subscribers,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

// AddSubscriber adds a single subscriber to a list by hand
func (sc *SubscriberController) AddSubscriber(c *fiber.Ctx) error {
	listID := c.Params("listId")

	var input struct {
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name" validate:"max=100"`
		LastName  string `json:"last_name" validate:"max=100"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var list models.NewsletterList
	if err := sc.DB.First(&list, listID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	subscriber := models.NewsletterSubscriber{
		ListID:    list.ID,
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Status:    models.SubscriberStatusSubscribed,
	}
	res := sc.DB.Where("list_id = ? AND email = ?", list.ID, email).
		Attrs(subscriber).
		FirstOrCreate(&subscriber)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add subscriber", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Subscriber already exists on this list", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(subscriber))
}

// UpdateSubscriber updates a subscriber's name fields and status
func (sc *SubscriberController) UpdateSubscriber(c *fiber.Ctx) error {
	listID := c.Params("listId")
	subscriberID := c.Params("id")

	var input struct {
		FirstName string `json:"first_name" validate:"max=100"`
		LastName  string `json:"last_name" validate:"max=100"`
		Status    string `json:"status" validate:"omitempty,oneof=subscribed unsubscribed pending"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var subscriber models.NewsletterSubscriber
	if err := sc.DB.Where("list_id = ?", listID).First(&subscriber, subscriberID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Subscriber not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch subscriber", err)
	}

	subscriber.FirstName = input.FirstName
	subscriber.LastName = input.LastName

	if input.Status != "" && input.Status != subscriber.Status {
		now := time.Now()
		subscriber.Status = input.Status
		switch input.Status {
		case models.SubscriberStatusSubscribed:
			subscriber.SubscribedAt = &now
			subscriber.UnsubscribedAt = nil
		case models.SubscriberStatusUnsubscribed:
			subscriber.UnsubscribedAt = &now
		}
	}

	if err := sc.DB.Save(&subscriber).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update subscriber", err)
	}

	return c.JSON(utils.SuccessResponse(subscriber))
}

// DeleteSubscriber removes a subscriber from a list
func (sc *SubscriberController) DeleteSubscriber(c *fiber.Ctx) error {
	listID := c.Params("listId")
	subscriberID := c.Params("id")

	result := sc.DB.Where("list_id = ?", listID).Delete(&models.NewsletterSubscriber{}, subscriberID)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete subscriber", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Subscriber not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Subscriber removed successfully",
	}))
}

// PublicSubscribe handles the public signup form addressed by list shortcode
func (sc *SubscriberController) PublicSubscribe(c *fiber.Ctx) error {
	shortcode := c.Params("shortcode")

	var input struct {
		Email     string `json:"email" form:"email"`
		FirstName string `json:"first_name" form:"first_name"`
		LastName  string `json:"last_name" form:"last_name"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", nil)
	}

	var list models.NewsletterList
	if err := sc.DB.Where("shortcode = ?", shortcode).First(&list).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	subscriber := models.NewsletterSubscriber{
		ListID:    list.ID,
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Status:    models.SubscriberStatusSubscribed,
	}
	res := sc.DB.Where("list_id = ? AND email = ?", list.ID, email).
		Attrs(subscriber).
		FirstOrCreate(&subscriber)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to subscribe", res.Error)
	}

	// Re-subscribing through the public form reactivates an unsubscribed address
	if res.RowsAffected == 0 && subscriber.Status == models.SubscriberStatusUnsubscribed {
		now := time.Now()
		subscriber.Status = models.SubscriberStatusSubscribed
		subscriber.SubscribedAt = &now
		subscriber.UnsubscribedAt = nil
		if err := sc.DB.Save(&subscriber).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to subscribe", err)
		}
	}

	sc.Logger.Printf("Public signup for list %s: %s", list.Shortcode, email)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "You are subscribed to " + list.Name,
	}))
}
