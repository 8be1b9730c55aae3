package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailloom/models"
	"mailloom/repository"
	"mailloom/utils"
)

type ListController struct {
	DB     *gorm.DB
	Store  *repository.Store
	Logger *log.Logger
}

func NewListController(db *gorm.DB, store *repository.Store, logger *log.Logger) *ListController {
	return &ListController{
		DB:     db,
		Store:  store,
		Logger: logger,
	}
}

// CreateList creates a new newsletter list
func (lc *ListController) CreateList(c *fiber.Ctx) error {
	var input struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"max=500"`
		FromName    string `json:"from_name" validate:"required,max=100"`
		FromEmail   string `json:"from_email" validate:"required,email"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	list := models.NewsletterList{
		Name:        input.Name,
		Description: input.Description,
		FromName:    input.FromName,
		FromEmail:   input.FromEmail,
	}

	// Retries with a fresh shortcode on unique-index collision only
	if err := lc.Store.CreateList(&list); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create list", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(list))
}

// GetLists returns all newsletter lists with their subscriber counts
func (lc *ListController) GetLists(c *fiber.Ctx) error {
	var lists []models.NewsletterList
	if err := lc.DB.Find(&lists).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lists", err)
	}

	type listResponse struct {
		models.NewsletterList
		SubscriberCount int64 `json:"subscriber_count"`
	}

	response := make([]listResponse, len(lists))
	for i, list := range lists {
		var count int64
		lc.DB.Model(&models.NewsletterSubscriber{}).
			Where("list_id = ? AND status = ?", list.ID, models.SubscriberStatusSubscribed).
			Count(&count)
		response[i] = listResponse{NewsletterList: list, SubscriberCount: count}
	}

	return c.JSON(utils.SuccessResponse(response))
}

// GetList returns a single list with its subscriber count
func (lc *ListController) GetList(c *fiber.Ctx) error {
	listID := c.Params("id")

	var list models.NewsletterList
	if err := lc.DB.First(&list, listID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	var count int64
	lc.DB.Model(&models.NewsletterSubscriber{}).Where("list_id = ?", list.ID).Count(&count)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"list":             list,
		"subscriber_count": count,
	}))
}

// UpdateList updates list details
func (lc *ListController) UpdateList(c *fiber.Ctx) error {
	listID := c.Params("id")

	var input struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"max=500"`
		FromName    string `json:"from_name" validate:"required,max=100"`
		FromEmail   string `json:"from_email" validate:"required,email"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var list models.NewsletterList
	if err := lc.DB.First(&list, listID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	list.Name = input.Name
	list.Description = input.Description
	list.FromName = input.FromName
	list.FromEmail = input.FromEmail

	if err := lc.DB.Save(&list).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update list", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// DeleteList deletes a list and everything hanging off it
func (lc *ListController) DeleteList(c *fiber.Ctx) error {
	listID := c.Params("id")

	tx := lc.DB.Begin()

	if err := tx.Where("list_id = ?", listID).Delete(&models.NewsletterSubscriber{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete subscribers", err)
	}

	result := tx.Delete(&models.NewsletterList{}, listID)
	if result.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete list", result.Error)
	}

	if result.RowsAffected == 0 {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "List deleted successfully",
	}))
}
