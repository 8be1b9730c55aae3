package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mailloom/models"
	"mailloom/utils"
)

// Store is the persistence handle passed explicitly into the background
// workers. Controllers keep using *gorm.DB directly; workers only see the
// narrow interfaces they declare, which this type satisfies.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// --- imports ---

func (s *Store) GetImport(id uint) (*models.Import, error) {
	var imp models.Import
	if err := s.DB.First(&imp, id).Error; err != nil {
		return nil, err
	}
	return &imp, nil
}

// ClaimImport flips pending -> processing for exactly one worker. The
// compare-and-swap guards against two workers picking up the same import.
func (s *Store) ClaimImport(id uint) (bool, error) {
	res := s.DB.Model(&models.Import{}).
		Where("id = ? AND status = ?", id, models.ImportStatusPending).
		Updates(map[string]interface{}{
			"status":     models.ImportStatusProcessing,
			"started_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) SaveImport(imp *models.Import) error {
	return s.DB.Save(imp).Error
}

// MarkImportFailed flips an import to failed by id, for the path where the
// record was claimed but could not be loaded afterwards. A claimed import
// must never be left in "processing".
func (s *Store) MarkImportFailed(id uint, reason string) error {
	now := time.Now()
	return s.DB.Model(&models.Import{}).
		Where("id = ?", id).
		Updates(models.Import{
			Status:      models.ImportStatusFailed,
			CompletedAt: &now,
			Errors:      []string{"Processing failed: " + reason},
		}).Error
}

// NextPendingImportID returns the oldest unclaimed import, 0 when none exist
func (s *Store) NextPendingImportID() (uint, error) {
	var imp models.Import
	err := s.DB.Where("status = ?", models.ImportStatusPending).
		Order("id asc").
		First(&imp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return imp.ID, nil
}

// --- lists ---

// CreateList inserts a list, retrying with a fresh shortcode on collision
func (s *Store) CreateList(list *models.NewsletterList) error {
	return retryOnDuplicate(
		func() error { return s.DB.Create(list).Error },
		func() { list.Shortcode = utils.GenerateShortcode() },
	)
}

// retryOnDuplicate reruns an insert a few times with a regenerated unique
// value. Only unique-constraint violations trigger a retry; any other error
// is returned as-is.
func retryOnDuplicate(create func() error, regenerate func()) error {
	const maxAttempts = 5
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = create()
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		regenerate()
	}
	return err
}

func (s *Store) GetList(id uint) (*models.NewsletterList, error) {
	var list models.NewsletterList
	if err := s.DB.First(&list, id).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

// --- subscribers ---

// FirstOrCreateSubscriber creates a subscriber keyed on (list_id, email).
// An existing subscriber is left untouched (first-wins); the return value
// reports whether a row was created.
func (s *Store) FirstOrCreateSubscriber(listID uint, email, firstName, lastName string) (bool, error) {
	sub := models.NewsletterSubscriber{
		ListID:    listID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Status:    models.SubscriberStatusSubscribed,
	}
	res := s.DB.Where("list_id = ? AND email = ?", listID, email).
		Attrs(sub).
		FirstOrCreate(&sub)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SubscribedByListID returns every currently-subscribed recipient of a list
func (s *Store) SubscribedByListID(listID uint) ([]models.NewsletterSubscriber, error) {
	var subs []models.NewsletterSubscriber
	err := s.DB.Where("list_id = ? AND status = ?", listID, models.SubscriberStatusSubscribed).
		Order("id asc").
		Find(&subs).Error
	return subs, err
}

// --- campaigns ---

func (s *Store) GetCampaign(id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.DB.First(&campaign, id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// ClaimCampaignForSending flips draft/scheduled -> sending for exactly one
// worker, returning the status the campaign was claimed from.
func (s *Store) ClaimCampaignForSending(id uint) (previous string, claimed bool, err error) {
	var campaign models.Campaign
	if err := s.DB.First(&campaign, id).Error; err != nil {
		return "", false, err
	}
	previous = campaign.Status

	res := s.DB.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", id, []string{models.CampaignStatusDraft, models.CampaignStatusScheduled}).
		Update("status", models.CampaignStatusSending)
	if res.Error != nil {
		return previous, false, res.Error
	}
	return previous, res.RowsAffected == 1, nil
}

// FinalizeCampaignSend persists the fields the fan-out owns. Opens, clicks
// and unsubscribes belong to the tracking endpoints and may have moved on
// the row since the campaign was loaded, so a full Save would erase them.
func (s *Store) FinalizeCampaignSend(campaign *models.Campaign) error {
	return s.DB.Model(campaign).
		Select("status", "sent_at", "sent_count", "bounces").
		Updates(models.Campaign{
			Status:    campaign.Status,
			SentAt:    campaign.SentAt,
			SentCount: campaign.SentCount,
			Bounces:   campaign.Bounces,
		}).Error
}

// DueScheduledCampaignIDs returns campaigns whose scheduled time has passed
func (s *Store) DueScheduledCampaignIDs(now time.Time) ([]uint, error) {
	var ids []uint
	err := s.DB.Model(&models.Campaign{}).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", models.CampaignStatusScheduled, now).
		Pluck("id", &ids).Error
	return ids, err
}

// --- opens ---

// RecordOpen inserts an open fact, tolerating duplicates as a no-op.
// It reports whether the insert actually added a row, so the caller only
// bumps the opens counter on first sight of a (campaign, subscriber) pair.
func (s *Store) RecordOpen(open *models.CampaignOpen) (bool, error) {
	res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(open)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
