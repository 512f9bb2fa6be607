package cluster

import (
	"fmt"
	"strings"
)

// NodesLine renders one CLUSTER NODES line for n, per the documented
// format (§6): `<id> <ip:port@busport> <flags> <master_ref> <ping_sent>
// <pong_recv> <config_epoch> <link_state>[ <slot_range>...]`.
func (s *State) NodesLine(n NodeInfo) string {
	flags := "master"
	if n.ID == s.self.ID {
		flags += ",myself"
	}
	if n.PFail {
		flags += ",fail?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s@%d %s - 0 0 0 connected", n.ID, n.Addr(), n.Port+10000, flags)

	for _, r := range s.SlotRanges(n.ID) {
		if r[0] == r[1] {
			fmt.Fprintf(&b, " %d", r[0])
		} else {
			fmt.Fprintf(&b, " %d-%d", r[0], r[1])
		}
	}
	return b.String()
}

// NodesReport renders the full CLUSTER NODES body, one line per node.
func (s *State) NodesReport() string {
	var lines []string
	for _, n := range s.Nodes() {
		lines = append(lines, s.NodesLine(n))
	}
	return strings.Join(lines, "\n")
}
