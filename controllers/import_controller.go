package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"mailloom/models"
	"mailloom/storage"
	"mailloom/utils"
	"mailloom/worker"
)

// Uploads past this size are rejected before staging
const maxImportFileSize = 10 * 1024 * 1024

type ImportController struct {
	DB     *gorm.DB
	Files  storage.Store
	Worker *worker.ImportWorker
	Logger *log.Logger
}

func NewImportController(db *gorm.DB, files storage.Store, importWorker *worker.ImportWorker, logger *log.Logger) *ImportController {
	return &ImportController{
		DB:     db,
		Files:  files,
		Worker: importWorker,
		Logger: logger,
	}
}

// CreateImport accepts a multipart CSV upload, stages the file and enqueues
// the import for background processing. The target is either an existing list
// (list_id field) or a new one described by the new_list JSON field.
func (ic *ImportController) CreateImport(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "CSV file is required", err)
	}

	if fileHeader.Size > maxImportFileSize {
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "File exceeds the 10MB upload limit", nil)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".csv" && ext != ".txt" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only CSV files are accepted", nil)
	}

	imp := models.Import{
		OriginalFilename: fileHeader.Filename,
		Status:           models.ImportStatusPending,
	}

	if listID := c.FormValue("list_id"); listID != "" {
		var list models.NewsletterList
		if err := ic.DB.First(&list, listID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
		}
		imp.ListID = &list.ID
	} else if newList := c.FormValue("new_list"); newList != "" {
		var data models.NewListData
		if err := json.Unmarshal([]byte(newList), &data); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid new_list payload", err)
		}
		if err := utils.ValidateStruct(data); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
		}
		imp.NewListData = &data
	} else {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Either list_id or new_list must be provided", nil)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read upload", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read upload", err)
	}

	imp.Filename = fmt.Sprintf("%s%s", uuid.New().String(), ext)
	if err := ic.Files.Save(imp.Filename, data); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to stage upload", err)
	}

	if err := ic.DB.Create(&imp).Error; err != nil {
		ic.Files.Delete(imp.Filename)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create import", err)
	}

	ic.Worker.Enqueue(imp.ID)

	ic.Logger.Printf("Import %d queued (%s, %d bytes)", imp.ID, imp.OriginalFilename, fileHeader.Size)

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(importResponse(&imp)))
}

// GetImports returns recent imports, newest first
func (ic *ImportController) GetImports(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var imports []models.Import
	if err := ic.DB.Order("id desc").Limit(limit).Find(&imports).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch imports", err)
	}

	response := make([]importView, len(imports))
	for i := range imports {
		response[i] = importResponse(&imports[i])
	}

	return c.JSON(utils.SuccessResponse(response))
}

// GetImport returns one import with live progress, for polling
func (ic *ImportController) GetImport(c *fiber.Ctx) error {
	importID := c.Params("id")

	var imp models.Import
	if err := ic.DB.First(&imp, importID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Import not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch import", err)
	}

	return c.JSON(utils.SuccessResponse(importResponse(&imp)))
}

// importView flattens an import with its derived progress for polling clients
type importView struct {
	*models.Import
	ProgressPercentage int `json:"progress_percentage"`
}

func importResponse(imp *models.Import) importView {
	return importView{
		Import:             imp,
		ProgressPercentage: imp.ProgressPercentage(),
	}
}
