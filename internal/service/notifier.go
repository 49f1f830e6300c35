package service

// Event types pushed over the notification channel. Delivery is best
// effort: a disconnected client misses the event and reconciles through
// the pull endpoints.
const (
	EventTradeCreated = "trade_created"
	EventTradeResult  = "trade_result"
	EventPriceUpdate  = "price_update"
)

// Notifier pushes events to connected clients
type Notifier interface {
	// Broadcast sends an event to every connected client
	Broadcast(event string, data interface{})

	// NotifyUser sends an event to the clients of one user
	NotifyUser(userID uint, event string, data interface{})
}

// NopNotifier discards all events. Used when the hub is disabled and in
// tests.
type NopNotifier struct{}

func (NopNotifier) Broadcast(event string, data interface{}) {}

func (NopNotifier) NotifyUser(userID uint, event string, data interface{}) {}
