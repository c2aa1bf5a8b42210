package memory

import (
	"sync"

	"questline/contexts/player-progression/reward-service/ports"
)

// Delivery is one recorded notification.
type Delivery struct {
	Channel string
	Event   ports.Event
}

// Notifier records every fan-out call instead of delivering it. Used by the
// in-memory module wiring and by tests asserting notification behavior.
type Notifier struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) SendToUser(userID string, event ports.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, Delivery{Channel: ports.UserChannel(userID), Event: event})
	return nil
}

func (n *Notifier) Publish(channel string, event ports.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, Delivery{Channel: channel, Event: event})
	return nil
}

// Deliveries returns the recorded notifications in send order.
func (n *Notifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Delivery(nil), n.deliveries...)
}

// DeliveriesTo filters recorded notifications by channel.
func (n *Notifier) DeliveriesTo(channel string) []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()

	var items []Delivery
	for _, delivery := range n.deliveries {
		if delivery.Channel == channel {
			items = append(items, delivery)
		}
	}
	return items
}

// Reset clears the recorded notifications.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = nil
}
