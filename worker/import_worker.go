package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/badoux/checkmail"

	"mailloom/events"
	"mailloom/models"
	"mailloom/storage"
)

// progressFlushInterval controls how often row counts are persisted while a
// file is being processed, so the polled progress endpoint stays fresh.
const progressFlushInterval = 100

// ImportStore is the persistence surface the import pipeline needs
type ImportStore interface {
	GetImport(id uint) (*models.Import, error)
	ClaimImport(id uint) (bool, error)
	SaveImport(imp *models.Import) error
	MarkImportFailed(id uint, reason string) error
	NextPendingImportID() (uint, error)
	CreateList(list *models.NewsletterList) error
	GetList(id uint) (*models.NewsletterList, error)
	FirstOrCreateSubscriber(listID uint, email, firstName, lastName string) (created bool, err error)
}

// ImportWorker processes uploaded CSV files into subscribers.
// Jobs arrive on an in-process channel from the upload controller; a ticker
// re-claims imports left pending across restarts. The pending->processing
// compare-and-swap in ClaimImport keeps concurrent workers off the same job.
type ImportWorker struct {
	Store  ImportStore
	Files  storage.Store
	Events events.Publisher
	Logger *log.Logger

	jobs chan uint
}

func NewImportWorker(store ImportStore, files storage.Store, publisher events.Publisher, logger *log.Logger) *ImportWorker {
	return &ImportWorker{
		Store:  store,
		Files:  files,
		Events: publisher,
		Logger: logger,
		jobs:   make(chan uint, 64),
	}
}

// Enqueue hands an import id to the worker without blocking the caller.
// A full channel is fine: the record stays pending and the recovery ticker
// picks it up.
func (iw *ImportWorker) Enqueue(importID uint) {
	select {
	case iw.jobs <- importID:
	default:
	}
}

func (iw *ImportWorker) Start(ctx context.Context) {
	iw.Logger.Println("Import worker started")

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			iw.Logger.Println("Import worker shutting down...")
			return
		case id := <-iw.jobs:
			if err := iw.Process(id); err != nil {
				iw.Logger.Printf("Import %d failed: %v", id, err)
			}
		case <-ticker.C:
			iw.recoverPending()
		}
	}
}

// recoverPending claims imports nobody is working on (queued before a
// restart, or whose enqueue was dropped)
func (iw *ImportWorker) recoverPending() {
	for {
		id, err := iw.Store.NextPendingImportID()
		if err != nil {
			iw.Logger.Printf("Error fetching pending imports: %v", err)
			return
		}
		if id == 0 {
			return
		}
		if err := iw.Process(id); err != nil {
			iw.Logger.Printf("Import %d failed: %v", id, err)
		}
	}
}

// Process runs one import to completion. The record never stays in
// "processing": every return path lands on completed or failed. Failures are
// already persisted and broadcast by the time the error is returned, so
// callers only log it.
func (iw *ImportWorker) Process(importID uint) error {
	claimed, err := iw.Store.ClaimImport(importID)
	if err != nil {
		return fmt.Errorf("failed to claim import %d: %w", importID, err)
	}
	if !claimed {
		// Another worker got there first, or the import already ran
		return nil
	}

	imp, err := iw.Store.GetImport(importID)
	if err != nil {
		// The claim already flipped the record to "processing" and the
		// recovery ticker only reaps "pending", so this path must mark the
		// record failed by id or it would stay in "processing" forever
		reason := fmt.Sprintf("could not load import record: %v", err)
		if markErr := iw.Store.MarkImportFailed(importID, reason); markErr != nil {
			iw.Logger.Printf("Failed to mark import %d failed: %v", importID, markErr)
		}
		iw.Events.Publish(events.Event{
			Name: events.EventImportCompleted,
			Payload: events.ImportCompletedPayload{
				Message:      "Import failed: " + reason,
				Type:         "error",
				ShouldReload: false,
			},
		})
		return fmt.Errorf("failed to load import %d: %w", importID, err)
	}

	iw.Events.Publish(events.Event{
		Name:    events.EventImportStarted,
		Payload: events.ImportStartedPayload{Import: imp},
	})

	list, err := iw.resolveList(imp)
	if err != nil {
		return iw.fail(imp, err.Error())
	}

	if !iw.Files.Exists(imp.Filename) {
		return iw.fail(imp, "Import file not found")
	}

	if err := iw.processRows(imp, list); err != nil {
		return iw.fail(imp, err.Error())
	}

	now := time.Now()
	imp.Status = models.ImportStatusCompleted
	imp.CompletedAt = &now
	if err := iw.Store.SaveImport(imp); err != nil {
		return iw.fail(imp, fmt.Sprintf("failed to persist results: %v", err))
	}

	iw.cleanup(imp)

	iw.Logger.Printf("Import %d completed: %d ok, %d failed of %d rows",
		imp.ID, imp.SuccessfulRows, imp.FailedRows, imp.TotalRows)

	message := fmt.Sprintf("Import completed: %d subscribers imported", imp.SuccessfulRows)
	if imp.FailedRows > 0 {
		message = fmt.Sprintf("Import completed: %d subscribers imported, %d rows failed",
			imp.SuccessfulRows, imp.FailedRows)
	}
	iw.Events.Publish(events.Event{
		Name: events.EventImportCompleted,
		Payload: events.ImportCompletedPayload{
			Message:      message,
			Type:         "success",
			ShouldReload: true,
		},
	})
	return nil
}

// resolveList finds the target list or creates one from the embedded payload
func (iw *ImportWorker) resolveList(imp *models.Import) (*models.NewsletterList, error) {
	if imp.ListID != nil {
		return iw.Store.GetList(*imp.ListID)
	}
	if imp.NewListData != nil {
		list := &models.NewsletterList{
			Name:        imp.NewListData.Name,
			Description: imp.NewListData.Description,
			FromName:    imp.NewListData.FromName,
			FromEmail:   imp.NewListData.FromEmail,
		}
		if err := iw.Store.CreateList(list); err != nil {
			return nil, fmt.Errorf("failed to create list: %v", err)
		}
		imp.ListID = &list.ID
		return list, nil
	}
	return nil, fmt.Errorf("No newsletter list specified")
}

// processRows streams the CSV and applies per-row validation. Row numbers are
// 1-based counting the header, so the first data row is row 2.
func (iw *ImportWorker) processRows(imp *models.Import, list *models.NewsletterList) error {
	var columns map[string]int
	rowNum := 0

	err := iw.Files.ReadLines(imp.Filename, func(line string) error {
		if rowNum == 0 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if strings.TrimSpace(line) == "" {
			return nil
		}
		rowNum++

		if columns == nil {
			columns = parseHeader(line)
			return nil
		}

		iw.processRow(imp, list, columns, line, rowNum)

		if imp.ProcessedRows%progressFlushInterval == 0 {
			if err := iw.Store.SaveImport(imp); err != nil {
				iw.Logger.Printf("Failed to flush import %d progress: %v", imp.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		if err == storage.ErrNotFound {
			return fmt.Errorf("Import file not found")
		}
		return fmt.Errorf("failed to read file: %v", err)
	}
	if columns == nil {
		return fmt.Errorf("Invalid CSV file - no header row")
	}
	return nil
}

func (iw *ImportWorker) processRow(imp *models.Import, list *models.NewsletterList, columns map[string]int, line string, rowNum int) {
	imp.TotalRows++
	imp.ProcessedRows++

	fields := strings.Split(line, ",")
	if len(fields) != headerWidth(columns) {
		imp.FailedRows++
		imp.AppendError(fmt.Sprintf("Row %d: Column count mismatch", rowNum))
		return
	}

	email := strings.TrimSpace(fieldAt(fields, columns, "email"))
	firstName := strings.TrimSpace(fieldAt(fields, columns, "first_name"))
	lastName := strings.TrimSpace(fieldAt(fields, columns, "last_name"))

	if err := checkmail.ValidateFormat(email); err != nil {
		imp.FailedRows++
		imp.AppendError(fmt.Sprintf("Row %d: Invalid email '%s'", rowNum, email))
		return
	}

	if _, err := iw.Store.FirstOrCreateSubscriber(list.ID, strings.ToLower(email), firstName, lastName); err != nil {
		imp.FailedRows++
		imp.AppendError(fmt.Sprintf("Row %d: %v", rowNum, err))
		return
	}

	imp.SuccessfulRows++
}

// fail marks the import failed, cleans the upload up, broadcasts the failure
// and returns the error for the caller's log. State is fully persisted before
// the error propagates.
func (iw *ImportWorker) fail(imp *models.Import, reason string) error {
	now := time.Now()
	imp.Status = models.ImportStatusFailed
	imp.CompletedAt = &now
	imp.AppendError("Processing failed: " + reason)
	if err := iw.Store.SaveImport(imp); err != nil {
		iw.Logger.Printf("Failed to persist failed import %d: %v", imp.ID, err)
	}

	iw.cleanup(imp)

	iw.Events.Publish(events.Event{
		Name: events.EventImportCompleted,
		Payload: events.ImportCompletedPayload{
			Message:      "Import failed: " + reason,
			Type:         "error",
			ShouldReload: false,
		},
	})
	return fmt.Errorf("import %d: %s", imp.ID, reason)
}

// cleanup removes the staged upload; it runs on both success and failure paths
func (iw *ImportWorker) cleanup(imp *models.Import) {
	if err := iw.Files.Delete(imp.Filename); err != nil {
		iw.Logger.Printf("Failed to delete import file %s: %v", imp.Filename, err)
	}
}

// headerAliases maps normalized header names to canonical subscriber fields.
// Unknown columns are ignored.
var headerAliases = map[string]string{
	"email":         "email",
	"e-mail":        "email",
	"email address": "email",
	"first_name":    "first_name",
	"firstname":     "first_name",
	"first name":    "first_name",
	"last_name":     "last_name",
	"lastname":      "last_name",
	"last name":     "last_name",
}

// parseHeader maps canonical field names to their column position. The raw
// column count is kept under the reserved "" key so row widths can be checked
// against the full header, ignored columns included.
func parseHeader(line string) map[string]int {
	cols := strings.Split(line, ",")
	mapping := map[string]int{"": len(cols)}
	for i, col := range cols {
		normalized := strings.ToLower(strings.TrimSpace(col))
		if canonical, ok := headerAliases[normalized]; ok {
			if _, taken := mapping[canonical]; !taken {
				mapping[canonical] = i
			}
		}
	}
	return mapping
}

func headerWidth(columns map[string]int) int {
	return columns[""]
}

func fieldAt(fields []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok {
		return ""
	}
	return fields[idx]
}
