package routing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
)

// topicFor names the per-edge subject an edge subscribes to for life
// (spec.md §4.2/§6.2): "edge.<edge_id>".
func topicFor(edgeID string) string {
	return "edge." + edgeID
}

// Bus wraps a nats.Conn with the encode/decode convention for
// cross-edge frame delivery: ASCII decimal user_id, one '|' byte, then
// the raw serialized client frame bytes (spec.md §6.2).
type Bus struct {
	nc *nats.Conn
}

func NewBus(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

// Publish delivers frame to userID on the edge identified by edgeID.
// Receivers on that edge's topic parse the payload and call
// deliver_local; they never re-publish (spec.md §4.2).
func (b *Bus) Publish(edgeID string, userID int64, frameBytes []byte) error {
	payload := encodePayload(userID, frameBytes)
	return b.nc.Publish(topicFor(edgeID), payload)
}

// Subscribe subscribes to this edge's own topic for life. handler
// receives the decoded (userID, frameBytes) pair for deliver_local.
func (b *Bus) Subscribe(edgeID string, handler func(userID int64, frameBytes []byte)) (*nats.Subscription, error) {
	return b.nc.Subscribe(topicFor(edgeID), func(msg *nats.Msg) {
		userID, frameBytes, err := decodePayload(msg.Data)
		if err != nil {
			return
		}
		handler(userID, frameBytes)
	})
}

func encodePayload(userID int64, frameBytes []byte) []byte {
	prefix := strconv.FormatInt(userID, 10) + "|"
	out := make([]byte, 0, len(prefix)+len(frameBytes))
	out = append(out, prefix...)
	out = append(out, frameBytes...)
	return out
}

func decodePayload(data []byte) (userID int64, frameBytes []byte, err error) {
	idx := strings.IndexByte(string(data), '|')
	if idx < 0 {
		return 0, nil, fmt.Errorf("routing: malformed bus payload, no '|' delimiter")
	}
	userID, err = strconv.ParseInt(string(data[:idx]), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("routing: malformed user_id prefix: %w", err)
	}
	return userID, data[idx+1:], nil
}
