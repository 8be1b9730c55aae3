package events

import (
	"sync"

	"mailloom/models"
)

// Event names pushed to connected UIs
const (
	EventImportStarted         = "import.started"
	EventImportCompleted       = "import.completed"
	EventCampaignStatusChanged = "campaign.status_changed"
)

// Event is one notification on the UI feed
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// ImportStartedPayload announces that an import began processing
type ImportStartedPayload struct {
	Import *models.Import `json:"import"`
}

// ImportCompletedPayload is shown as a toast; ShouldReload tells the UI to
// refetch list data because subscribers may have been created.
type ImportCompletedPayload struct {
	Message      string `json:"message"`
	Type         string `json:"type"` // success, error
	ShouldReload bool   `json:"should_reload"`
}

// CampaignStatusChangedPayload carries a campaign lifecycle transition
type CampaignStatusChangedPayload struct {
	Campaign       *models.Campaign `json:"campaign"`
	PreviousStatus string           `json:"previous_status"`
	NewStatus      string           `json:"new_status"`
}

// Publisher is the side workers see
type Publisher interface {
	Publish(event Event)
}

// Broadcaster fans events out to subscribed channels (one per websocket
// client). Slow subscribers get events dropped rather than blocking workers.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new listener channel
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber without blocking
func (b *Broadcaster) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
