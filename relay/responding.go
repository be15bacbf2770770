package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
)

// handleRequest replays stored events matching the filter to the
// subscriber. A pool exhaustion error closes the subscription; other
// storage errors surface as a NOTICE but keep the subscription alive.
func (rl *Relay) handleRequest(ctx context.Context, id string, eose *sync.WaitGroup, ws *WebSocket, filter nostr.Filter) error {
	defer eose.Done()

	if filter.LimitZero {
		// don't do any queries, just subscribe to future events
		return nil
	}

	if rl.OnRequest != nil {
		if reject, msg := rl.OnRequest(ctx, filter); reject {
			return errors.New(nostr.NormalizeOKMessage(msg, "blocked"))
		}
	}

	if rl.QueryStored == nil {
		return nil
	}

	events, err := rl.QueryStored(ctx, filter)
	if err != nil {
		if errors.Is(err, eventstore.ErrPoolExhausted) {
			return errors.New("error: too many concurrent queries, try again later")
		}
		ws.WriteEnvelope(nostr.NoticeEnvelope(err.Error()))
		return nil
	}

	for event := range events {
		ws.WriteEnvelope(nostr.EventEnvelope{SubscriptionID: &id, Event: event})
	}

	return nil
}
