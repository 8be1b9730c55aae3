package controller

import (
	"log"

	"github.com/gofiber/websocket/v2"

	"mailloom/events"
)

// EventsController streams the server's event feed (import progress,
// campaign lifecycle changes) to connected UIs over websocket
type EventsController struct {
	Broadcaster *events.Broadcaster
	Logger      *log.Logger
}

func NewEventsController(broadcaster *events.Broadcaster, logger *log.Logger) *EventsController {
	return &EventsController{
		Broadcaster: broadcaster,
		Logger:      logger,
	}
}

// HandleEventsWS relays broadcast events to one websocket client until it
// disconnects. A reader goroutine drains incoming frames so close messages
// are noticed; nothing the client sends is interpreted.
func (ec *EventsController) HandleEventsWS(c *websocket.Conn) {
	sub := ec.Broadcaster.Subscribe()
	defer ec.Broadcaster.Unsubscribe(sub)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				ec.Logger.Printf("Websocket write failed: %v", err)
				return
			}
		}
	}
}
