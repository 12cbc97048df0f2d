package mq

import (
	"context"
	"encoding/json"
	"log"

	"pixelfeed/models"
	"pixelfeed/rdx"
)

const channel = "feed-events"

// Emit publishes a domain event (post created/deleted, follow edge
// changed, like added) to the Redis event channel. Delivery is best
// effort; the canonical state already lives in the store.
func Emit(eventName string, content models.Index) {
	if rdx.Conn == nil {
		return
	}

	data, err := json.Marshal(content)
	if err != nil {
		log.Printf("[Emit] Failed to marshal event content: %v", err)
		return
	}

	if err := rdx.Conn.Publish(context.Background(), channel, data).Err(); err != nil {
		log.Printf("[Emit] Failed to publish %s: %v", eventName, err)
	}
}

// StartActivityWorker consumes feed events and maintains the per-user
// activity log in Redis (most recent first, capped).
func StartActivityWorker() {
	if rdx.Conn == nil {
		return
	}
	ctx := context.Background()
	sub := rdx.Conn.Subscribe(ctx, channel)
	ch := sub.Channel()

	log.Println("[ActivityWorker] Listening for feed events...")

	for msg := range ch {
		var event models.Index
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("[ActivityWorker] Failed to parse event: %v", err)
			continue
		}
		key := "activity:" + event.EntityId
		if err := rdx.Conn.LPush(ctx, key, msg.Payload).Err(); err != nil {
			log.Printf("[ActivityWorker] LPush error: %v", err)
			continue
		}
		rdx.Conn.LTrim(ctx, key, 0, 99)
	}
}
