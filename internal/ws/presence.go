package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/metrics"
)

// Registry is the process-wide presence map: which live connections
// represent which user. It is the only shared mutable structure in the
// process and is mutated exclusively through Bind/Unbind; everything else
// reads snapshots.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Sender // userID -> connID -> conn
	byConn map[string]string            // connID -> userID
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		byUser: make(map[string]map[string]Sender),
		byConn: make(map[string]string),
		log:    log,
	}
}

// Bind associates a connection with a user. Idempotent for the same
// pair; rebinding a connection to a different user without an
// intervening Unbind is ErrIdentityConflict. first reports whether this
// bind brought the user online.
func (r *Registry) Bind(c Sender, userID string) (first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.byConn[c.ID()]; ok {
		if bound == userID {
			return false, nil
		}
		return false, domain.ErrIdentityConflict
	}

	conns := r.byUser[userID]
	if conns == nil {
		conns = make(map[string]Sender)
		r.byUser[userID] = conns
		first = true
		metrics.OnlineUsers.Inc()
	}
	conns[c.ID()] = c
	r.byConn[c.ID()] = userID
	metrics.Connections.Inc()
	return first, nil
}

// Unbind removes the association. Calling it for a connection that was
// never bound (or already unbound) is a no-op. last reports whether this
// was the user's final connection.
func (r *Registry) Unbind(c Sender) (userID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[c.ID()]
	if !ok {
		return "", false
	}
	delete(r.byConn, c.ID())
	metrics.Connections.Dec()

	if conns, ok := r.byUser[userID]; ok {
		delete(conns, c.ID())
		if len(conns) == 0 {
			delete(r.byUser, userID)
			metrics.OnlineUsers.Dec()
			last = true
		}
	}
	return userID, last
}

// ConnectionsFor returns a point-in-time snapshot of the user's live
// connections, possibly empty. Mutating the registry afterwards does not
// affect the returned slice.
func (r *Registry) ConnectionsFor(userID string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	res := make([]Sender, 0, len(conns))
	for _, c := range conns {
		res = append(res, c)
	}
	return res
}

// IsOnline reports whether the user has at least one bound connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineSet answers a batch presence query.
func (r *Registry) OnlineSet(userIDs []string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		res[id] = len(r.byUser[id]) > 0
	}
	return res
}

// Broadcast delivers the payload to every connection currently bound to
// the user. A dead connection is logged and skipped; it never aborts
// delivery to the rest.
func (r *Registry) Broadcast(userID string, payload any) {
	for _, c := range r.ConnectionsFor(userID) {
		if err := c.Send(payload); err != nil {
			metrics.BroadcastFailures.Inc()
			r.log.Warn("broadcast delivery failed",
				zap.String("user_id", userID),
				zap.String("conn_id", c.ID()),
				zap.Error(err))
			c.Close()
		}
	}
}

// BroadcastMany fans a payload out to several users' connection sets.
func (r *Registry) BroadcastMany(userIDs []string, payload any) {
	for _, uid := range userIDs {
		r.Broadcast(uid, payload)
	}
}
