package routing

import (
	"context"
	"strconv"
)

// LocalDelivery is implemented by the edge's session manager: it knows
// which users currently have a registered local session and can push a
// frame onto each of their write queues.
type LocalDelivery interface {
	// DeliverLocal enqueues frameBytes on every local session of userID
	// and reports whether at least one local session received it.
	DeliverLocal(userID int64, frameBytes []byte) (delivered bool)
}

// publisher is the subset of Bus that Router depends on, kept as an
// interface so the cross-edge publish path can be exercised without a
// live nats connection.
type publisher interface {
	Publish(edgeID string, userID int64, frameBytes []byte) error
}

// Router implements the fan-out algorithm for send_to_user (spec.md
// §4.2): local delivery first, else directory lookup and cross-edge
// publish, else treat the user as offline (persistence already holds
// the message).
type Router struct {
	edgeID string
	dir    *Directory
	bus    publisher
	local  LocalDelivery
}

func NewRouter(edgeID string, dir *Directory, bus publisher, local LocalDelivery) *Router {
	return &Router{edgeID: edgeID, dir: dir, bus: bus, local: local}
}

// SendToUser implements the three-step fan-out algorithm. It never
// returns an error for an offline user: that is not a failure, it is
// the documented no-op path (persistence already recorded the
// message; see spec.md §4.2 step 2).
func (r *Router) SendToUser(ctx context.Context, userID int64, frameBytes []byte) error {
	if r.local.DeliverLocal(userID, frameBytes) {
		return nil
	}

	edgeID, ok, err := r.dir.Get(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if edgeID == r.edgeID {
		// Directory says this edge owns the user but no local session
		// exists: directory drift (spec.md §7) — self-heals on next
		// Login/teardown. Nothing to publish to ourselves.
		return nil
	}
	return r.bus.Publish(edgeID, userID, frameBytes)
}
