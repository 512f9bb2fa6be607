package dispatch

import (
	"context"
	"time"

	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/resp"
)

func registerClusterCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "CLUSTER", Handler: cmdCluster, MinArity: 2, MaxArity: -1, ClusterExempt: true})
}

func cmdCluster(c *Context) resp.Message {
	switch upper(c.Arg(1)) {
	case "KEYSLOT":
		if c.Argc() != 3 {
			return wrongArity("cluster|keyslot")
		}
		return intMsg(int64(cluster.KeyHashSlot(c.ArgStr(2))))
	case "INFO":
		state := "ok"
		if !c.Cluster().OK() {
			state = "fail"
		}
		if !c.Cluster().IsEnabled() {
			state = "ok" // standalone still reports ok, just cluster_enabled:0
		}
		body := "cluster_enabled:0\ncluster_state:" + state + "\ncluster_slots_assigned:0\ncluster_known_nodes:1\n"
		if c.Cluster().IsEnabled() {
			body = "cluster_enabled:1\ncluster_state:" + state + "\n"
		}
		return bulkStr(body)
	case "NODES":
		return bulkStr(c.Cluster().NodesReport() + "\n")
	case "MYID":
		return bulkStr(c.Cluster().SelfID())
	case "SLOTS":
		var out []resp.Message
		for _, n := range c.Cluster().Nodes() {
			for _, r := range c.Cluster().SlotRanges(n.ID) {
				out = append(out, resp.ArrayMsg([]resp.Message{
					intMsg(int64(r[0])), intMsg(int64(r[1])),
					resp.ArrayMsg([]resp.Message{bulkStr(n.IP), intMsg(int64(n.Port)), bulkStr(n.ID)}),
				}))
			}
		}
		return arr(out...)
	case "MEET":
		if c.Argc() != 4 {
			return wrongArity("cluster|meet")
		}
		port, err := parseInt(c.ArgStr(3))
		if err != nil {
			return notInteger()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.Cluster().Meet(ctx, c.ArgStr(2), int(port), c.D.Log)
		return ok()
	case "ADDSLOTS":
		slots, errReply := parseSlotList(c, 2)
		if errReply.Type == resp.Error {
			return errReply
		}
		c.Cluster().AddSlots(slots)
		return ok()
	case "DELSLOTS":
		slots, errReply := parseSlotList(c, 2)
		if errReply.Type == resp.Error {
			return errReply
		}
		c.Cluster().DelSlots(slots)
		return ok()
	case "COUNTKEYSINSLOT":
		return intMsg(0)
	case "GETKEYSINSLOT":
		return arr()
	default:
		return errMsg("ERR Unknown CLUSTER subcommand")
	}
}

func parseSlotList(c *Context, start int) ([]uint16, resp.Message) {
	var out []uint16
	for i := start; i < c.Argc(); i++ {
		n, err := parseInt(c.ArgStr(i))
		if err != nil || n < 0 || n >= cluster.SlotCount {
			return nil, errMsg("ERR Invalid or out of range slot")
		}
		out = append(out, uint16(n))
	}
	return out, resp.Message{}
}
