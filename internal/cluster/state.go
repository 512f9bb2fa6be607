// Package cluster implements the 16384-slot ownership map and MOVED/
// CROSSSLOT/CLUSTERDOWN redirection logic (§4.4).
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/redisd/internal/peerclient"
)

// NodeInfo describes one cluster member, local or remote.
type NodeInfo struct {
	ID    string
	IP    string
	Port  int
	PFail bool // best-effort liveness probe failed; not a failure detector
}

func (n NodeInfo) Addr() string { return fmt.Sprintf("%s:%d", n.IP, n.Port) }

// State is the cluster slot map plus node table. A disabled cluster
// treats every key as local unconditionally (§4.4).
type State struct {
	mu sync.RWMutex

	enabled bool
	self    NodeInfo
	nodes   map[string]NodeInfo
	slots   [SlotCount]string // node ID owning the slot, "" if unowned

	peers map[string]*peerclient.Client
}

// NewState returns a cluster-disabled state seeded with a random self
// node ID, the boot-time default (§6 `cluster-enabled` defaults off —
// ENABLE CLUSTER-style boot flag toggles it).
func NewState(selfIP string, selfPort int) *State {
	self := NodeInfo{ID: uuid.New().String(), IP: selfIP, Port: selfPort}
	s := &State{
		self:  self,
		nodes: map[string]NodeInfo{self.ID: self},
		peers: make(map[string]*peerclient.Client),
	}
	return s
}

// Enable turns cluster mode on (CLUSTER-support boot config); there is no
// way to turn it off again.
func (s *State) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

func (s *State) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *State) SelfID() string { return s.self.ID }

// IsKeyLocal reports whether key's slot is owned by this node. Always
// true when cluster mode is disabled (§4.4).
func (s *State) IsKeyLocal(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return true
	}
	slot := KeyHashSlot(key)
	return s.slots[slot] == s.self.ID
}

// NodeForSlot returns the owner of slot, if any.
func (s *State) NodeForSlot(slot uint16) (NodeInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.slots[slot]
	if id == "" {
		return NodeInfo{}, false
	}
	n, ok := s.nodes[id]
	return n, ok
}

// AddSlots assigns slots to this node.
func (s *State) AddSlots(slots []uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.slots[slot] = s.self.ID
	}
}

// DelSlots unassigns slots (only if currently owned by this node).
func (s *State) DelSlots(slots []uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		if s.slots[slot] == s.self.ID {
			s.slots[slot] = ""
		}
	}
}

// Meet registers a peer node stub and pings it once, inline, via the
// shared outbound RESP client — CLUSTER MEET's documented "adds a peer
// node stub" behavior. A failed ping sets PFail, which CLUSTER NODES shows
// as a "fail?" flag; the link-state column always reads "connected".
func (s *State) Meet(ctx context.Context, ip string, port int, log *zap.Logger) NodeInfo {
	s.mu.Lock()
	peer := NodeInfo{ID: uuid.New().String(), IP: ip, Port: port}
	s.nodes[peer.ID] = peer
	client := peerclient.New(peer.Addr(), log)
	s.peers[peer.ID] = client
	s.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		s.mu.Lock()
		peer.PFail = true
		s.nodes[peer.ID] = peer
		s.mu.Unlock()
	}

	return peer
}

// Nodes returns every known node (self plus peers), for CLUSTER NODES.
func (s *State) Nodes() []NodeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NodeInfo, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// Self returns this node's own info.
func (s *State) Self() NodeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

// SlotRanges returns the contiguous slot ranges owned by nodeID, for
// CLUSTER NODES/SLOTS rendering.
func (s *State) SlotRanges(nodeID string) [][2]uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ranges [][2]uint16
	var start int = -1
	for slot := 0; slot < SlotCount; slot++ {
		owned := s.slots[slot] == nodeID
		if owned && start == -1 {
			start = slot
		}
		if !owned && start != -1 {
			ranges = append(ranges, [2]uint16{uint16(start), uint16(slot - 1)})
			start = -1
		}
	}
	if start != -1 {
		ranges = append(ranges, [2]uint16{uint16(start), uint16(SlotCount - 1)})
	}
	return ranges
}

// OK reports whether every slot has a known owner (CLUSTER INFO
// cluster_state).
func (s *State) OK() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, owner := range s.slots {
		if owner == "" {
			return false
		}
	}
	return true
}

// RedirectError is returned by Check when a command must be redirected
// or rejected instead of executed locally.
type RedirectError struct {
	Kind string // "MOVED" | "CROSSSLOT" | "CLUSTERDOWN"
	Slot uint16
	Addr string
}

func (e *RedirectError) Error() string {
	switch e.Kind {
	case "MOVED":
		return fmt.Sprintf("MOVED %d %s", e.Slot, e.Addr)
	case "CROSSSLOT":
		return "CROSSSLOT Keys in request don't hash to the same slot"
	case "CLUSTERDOWN":
		return "CLUSTERDOWN Hash slot not served"
	default:
		return "CLUSTERDOWN unknown"
	}
}

// Check implements the dispatcher's cluster pre-check (§4.4): given the
// keys a command touches, decide whether it may run locally. A disabled
// cluster always allows execution (nil).
func (s *State) Check(keys []string) error {
	if !s.IsEnabled() || len(keys) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var firstSlot uint16
	haveFirst := false
	for _, k := range keys {
		slot := KeyHashSlot(k)
		if !haveFirst {
			firstSlot, haveFirst = slot, true
			continue
		}
		if slot != firstSlot {
			return &RedirectError{Kind: "CROSSSLOT"}
		}
	}

	ownerID := s.slots[firstSlot]
	if ownerID == "" {
		return &RedirectError{Kind: "CLUSTERDOWN"}
	}
	if ownerID == s.self.ID {
		return nil
	}
	owner := s.nodes[ownerID]
	return &RedirectError{Kind: "MOVED", Slot: firstSlot, Addr: owner.Addr()}
}
