package relay

import (
	"github.com/OpenAgentsInc/pylon"
)

func (rl *Relay) addClient(ws *WebSocket) {
	rl.clientsMutex.Lock()
	rl.clients[ws] = struct{}{}
	rl.clientsMutex.Unlock()
}

func (rl *Relay) removeClient(ws *WebSocket) {
	rl.clientsMutex.Lock()
	delete(rl.clients, ws)
	rl.clientsMutex.Unlock()
}

// openSubscription registers the filters under the subscription id,
// replacing any previous subscription the connection had under the
// same id.
func (ws *WebSocket) openSubscription(id string, filters []nostr.Filter) {
	ws.subscriptions.Store(id, filters)
}

func (ws *WebSocket) closeSubscription(id string) {
	ws.subscriptions.Delete(id)
}

// notifyListeners delivers the event to every subscription of every
// connected client whose filters match it. The event's tags are
// indexed once up front; within a subscription the event is delivered
// at most once no matter how many of its filters match.
func (rl *Relay) notifyListeners(event nostr.Event) {
	idx := nostr.BuildTagIndex(event.Tags)

	rl.clientsMutex.Lock()
	clients := make([]*WebSocket, 0, len(rl.clients))
	for ws := range rl.clients {
		clients = append(clients, ws)
	}
	rl.clientsMutex.Unlock()

	for _, ws := range clients {
		if rl.PreventBroadcast != nil && rl.PreventBroadcast(ws, event) {
			continue
		}
		ws.subscriptions.Range(func(id string, filters []nostr.Filter) bool {
			// limit doesn't apply to live events, only to stored replay
			for _, filter := range filters {
				if filter.MatchesWithIndex(event, idx) {
					subID := id
					ws.WriteEnvelope(nostr.EventEnvelope{SubscriptionID: &subID, Event: event})
					break
				}
			}
			return true
		})
	}
}

// BroadcastEvent emits the event to all interested listeners as if it
// had just been written, skipping the storage step.
func (rl *Relay) BroadcastEvent(evt nostr.Event) {
	rl.publishLock.Lock()
	rl.notifyListeners(evt)
	rl.publishLock.Unlock()
}
