package worker

import (
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailloom/events"
	"mailloom/models"
)

type mockCampaignStore struct {
	campaigns   map[uint]*models.Campaign
	lists       map[uint]*models.NewsletterList
	subscribers map[uint][]models.NewsletterSubscriber
	dueIDs      []uint
	saved       []*models.Campaign
}

func newMockCampaignStore() *mockCampaignStore {
	return &mockCampaignStore{
		campaigns:   make(map[uint]*models.Campaign),
		lists:       make(map[uint]*models.NewsletterList),
		subscribers: make(map[uint][]models.NewsletterSubscriber),
	}
}

// GetCampaign returns a copy, the way a row load would, so writes to the
// stored record are only visible through explicit persistence calls
func (m *mockCampaignStore) GetCampaign(id uint) (*models.Campaign, error) {
	campaign, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d not found", id)
	}
	loaded := *campaign
	return &loaded, nil
}

func (m *mockCampaignStore) GetList(id uint) (*models.NewsletterList, error) {
	list, ok := m.lists[id]
	if !ok {
		return nil, fmt.Errorf("list %d not found", id)
	}
	return list, nil
}

func (m *mockCampaignStore) SubscribedByListID(listID uint) ([]models.NewsletterSubscriber, error) {
	return m.subscribers[listID], nil
}

// FinalizeCampaignSend applies only the fan-out's fields to the stored
// record, leaving engagement counters untouched
func (m *mockCampaignStore) FinalizeCampaignSend(campaign *models.Campaign) error {
	stored, ok := m.campaigns[campaign.ID]
	if !ok {
		return fmt.Errorf("campaign %d not found", campaign.ID)
	}
	stored.Status = campaign.Status
	stored.SentAt = campaign.SentAt
	stored.SentCount = campaign.SentCount
	stored.Bounces = campaign.Bounces
	m.saved = append(m.saved, stored)
	return nil
}

func (m *mockCampaignStore) ClaimCampaignForSending(id uint) (string, bool, error) {
	campaign, ok := m.campaigns[id]
	if !ok {
		return "", false, fmt.Errorf("campaign %d not found", id)
	}
	previous := campaign.Status
	if !campaign.Sendable() {
		return previous, false, nil
	}
	campaign.Status = models.CampaignStatusSending
	return previous, true, nil
}

func (m *mockCampaignStore) DueScheduledCampaignIDs(now time.Time) ([]uint, error) {
	return m.dueIDs, nil
}

// mockMailer records sends and fails for addresses listed in failFor.
// onSend, when set, runs after each delivery to simulate recipient activity
// happening while the loop is still running.

type mockMailer struct {
	sent    []sentMail
	failFor map[string]bool
	onSend  func(to string)
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (m *mockMailer) Send(fromName, fromEmail, to, subject, htmlBody string) error {
	if m.failFor[to] {
		return fmt.Errorf("connection refused")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	if m.onSend != nil {
		m.onSend(to)
	}
	return nil
}

func seedCampaign(store *mockCampaignStore, subscriberEmails ...string) *models.Campaign {
	list := &models.NewsletterList{
		Name:      "Weekly",
		FromName:  "The Team",
		FromEmail: "team@example.com",
	}
	list.ID = 1
	store.lists[list.ID] = list

	for i, email := range subscriberEmails {
		sub := models.NewsletterSubscriber{
			ListID:           list.ID,
			Email:            email,
			FirstName:        fmt.Sprintf("First%d", i),
			Status:           models.SubscriberStatusSubscribed,
			UnsubscribeToken: fmt.Sprintf("token-%d", i),
		}
		sub.ID = uint(i + 1)
		store.subscribers[list.ID] = append(store.subscribers[list.ID], sub)
	}

	campaign := &models.Campaign{
		ListID:    list.ID,
		Name:      "Issue 1",
		Subject:   "Hello {{first_name}}",
		Content:   `<p>Hi {{first_name}}</p><a href="https://example.com/read">Read</a>`,
		Status:    models.CampaignStatusSending,
		Shortcode: "abc12345",
	}
	campaign.ID = 7
	store.campaigns[campaign.ID] = campaign
	return campaign
}

func newTestCampaignWorker(store *mockCampaignStore, mailer *mockMailer, pub *mockPublisher) *CampaignWorker {
	return NewCampaignWorker(store, mailer, pub,
		log.New(os.Stdout, "TEST: ", log.LstdFlags), "http://localhost:5000", 0)
}

func TestRunDeliversToEverySubscriber(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store, "alice@example.com", "bob@example.com")

	require.NoError(t, cw.Run(campaign.ID, models.CampaignStatusDraft))

	assert.Equal(t, 2, campaign.SentCount)
	assert.Equal(t, 0, campaign.Bounces)
	assert.Equal(t, models.CampaignStatusSent, campaign.Status)
	assert.NotNil(t, campaign.SentAt)
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "alice@example.com", mailer.sent[0].to)
	assert.Equal(t, "bob@example.com", mailer.sent[1].to)
}

func TestRunPersonalizesAndInjectsTracking(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store, "alice@example.com")

	require.NoError(t, cw.Run(campaign.ID, models.CampaignStatusDraft))

	require.Len(t, mailer.sent, 1)
	body := mailer.sent[0].body
	assert.Contains(t, body, "Hi First0")
	assert.Contains(t, body, "/t/open/abc12345/token-0")
	assert.Contains(t, body, "/t/unsubscribe/abc12345/token-0")
	assert.Contains(t, body, "/t/click/abc12345/token-0?url=")
	assert.NotContains(t, body, `href="https://example.com/read"`)
}

func TestRunTalliesBouncesAndContinues(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{failFor: map[string]bool{"bob@example.com": true}}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store, "alice@example.com", "bob@example.com", "carol@example.com")

	require.NoError(t, cw.Run(campaign.ID, models.CampaignStatusDraft))

	assert.Equal(t, 2, campaign.SentCount)
	assert.Equal(t, 1, campaign.Bounces)
	assert.Equal(t, models.CampaignStatusSent, campaign.Status)
	require.Len(t, mailer.sent, 2)
}

func TestRunPreservesEngagementCountersBumpedMidSend(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store, "alice@example.com", "bob@example.com")

	// Early recipients open and click while later ones are still being sent;
	// those bumps land on the stored row, not on the worker's loaded copy
	mailer.onSend = func(string) {
		store.campaigns[campaign.ID].Opens++
		store.campaigns[campaign.ID].Clicks++
	}

	require.NoError(t, cw.Run(campaign.ID, models.CampaignStatusDraft))

	assert.Equal(t, 2, campaign.Opens)
	assert.Equal(t, 2, campaign.Clicks)
	assert.Equal(t, 2, campaign.SentCount)
	assert.Equal(t, models.CampaignStatusSent, campaign.Status)
}

func TestRunCompletesWithNoSubscribers(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store)

	require.NoError(t, cw.Run(campaign.ID, models.CampaignStatusDraft))

	assert.Equal(t, 0, campaign.SentCount)
	assert.Equal(t, models.CampaignStatusSent, campaign.Status)
	assert.Empty(t, mailer.sent)
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store, "alice@example.com")

	require.NoError(t, cw.Run(campaign.ID, models.CampaignStatusScheduled))

	changed := pub.named(events.EventCampaignStatusChanged)
	require.Len(t, changed, 2)

	first := changed[0].Payload.(events.CampaignStatusChangedPayload)
	assert.Equal(t, models.CampaignStatusScheduled, first.PreviousStatus)
	assert.Equal(t, models.CampaignStatusSending, first.NewStatus)

	second := changed[1].Payload.(events.CampaignStatusChangedPayload)
	assert.Equal(t, models.CampaignStatusSending, second.PreviousStatus)
	assert.Equal(t, models.CampaignStatusSent, second.NewStatus)
}

func TestProcessDueCampaignsClaimsAndRuns(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store, "alice@example.com")
	past := time.Now().Add(-time.Minute)
	campaign.Status = models.CampaignStatusScheduled
	campaign.ScheduledAt = &past
	store.dueIDs = []uint{campaign.ID}

	cw.processDueCampaigns()

	assert.Equal(t, models.CampaignStatusSent, campaign.Status)
	assert.Equal(t, 1, campaign.SentCount)
}

func TestProcessDueCampaignsSkipsUnclaimable(t *testing.T) {
	store := newMockCampaignStore()
	mailer := &mockMailer{}
	pub := &mockPublisher{}
	cw := newTestCampaignWorker(store, mailer, pub)

	campaign := seedCampaign(store, "alice@example.com")
	campaign.Status = models.CampaignStatusSent
	store.dueIDs = []uint{campaign.ID}

	cw.processDueCampaigns()

	assert.Equal(t, 0, campaign.SentCount)
	assert.Empty(t, mailer.sent)
}
