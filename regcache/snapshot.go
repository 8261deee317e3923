package regcache

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/xlab/treeprint"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

type GuestSnapshot struct {
	Reg        GuestReg `json:"reg"`
	State      string   `json:"state"`
	Host       string   `json:"host,omitempty"`
	Imm        *uint64  `json:"imm,omitempty"`
	Home       int32    `json:"home"`
	Dirty      bool     `json:"dirty"`
	Revertable bool     `json:"revertable,omitempty"`
	Locks      int      `json:"locks,omitempty"`
}

type HostSnapshot struct {
	Reg   HostReg   `json:"reg"`
	Name  string    `json:"name"`
	Guest *GuestReg `json:"guest,omitempty"`
	Locks int       `json:"locks,omitempty"`
}

// Snapshot is a read-only copy of the slot arrays. Hosts are listed in
// allocation order.
type Snapshot struct {
	Guests []GuestSnapshot `json:"guests"`
	Hosts  []HostSnapshot  `json:"hosts"`
}

func (c *Cache) Snapshot() Snapshot {
	c.checkStarted()
	var s Snapshot
	for g := range c.guests {
		gs := &c.guests[g]
		e := GuestSnapshot{
			Reg:        GuestReg(g),
			State:      gs.state(),
			Home:       gs.home.Offset,
			Dirty:      gs.isDirty(),
			Revertable: gs.revertable,
			Locks:      gs.locks,
		}
		switch loc := gs.loc.(type) {
		case HostLocation:
			e.Host = c.hostName(loc.Reg)
		case ImmediateLocation:
			v := loc.Value
			e.Imm = &v
		}
		s.Guests = append(s.Guests, e)
	}
	for _, h := range c.cfg.AllocationOrder {
		hs := &c.hosts[h]
		e := HostSnapshot{Reg: h, Name: c.hostName(h), Locks: hs.locks}
		if !hs.free {
			g := hs.guest
			e.Guest = &g
		}
		s.Hosts = append(s.Hosts, e)
	}
	return s
}

func (s Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

func (g GuestSnapshot) describe() string {
	d := fmt.Sprintf("%s %s", g.Reg, g.State)
	switch {
	case g.Host != "":
		d += " " + g.Host
	case g.Imm != nil:
		d += fmt.Sprintf(" $%#x", *g.Imm)
	}
	if g.Dirty {
		d += " dirty"
	}
	if g.Revertable {
		d += " revertable"
	}
	if g.Locks > 0 {
		d += fmt.Sprintf(" locks=%d", g.Locks)
	}
	return d
}

func (h HostSnapshot) describe() string {
	d := h.Name
	if h.Guest != nil {
		d += " <- " + h.Guest.String()
	} else {
		d += " free"
	}
	if h.Locks > 0 {
		d += fmt.Sprintf(" locks=%d", h.Locks)
	}
	return d
}

// Tree renders the snapshot. Guests in their default state are folded into
// a single count.
func (s Snapshot) Tree() string {
	tree := treeprint.New()
	tree.SetValue("regcache")
	guests := tree.AddBranch("guests")
	idle := 0
	for _, g := range s.Guests {
		if g.State == "default" && g.Locks == 0 {
			idle++
			continue
		}
		guests.AddNode(g.describe())
	}
	if idle > 0 {
		guests.AddNode(fmt.Sprintf("%d in memory", idle))
	}
	hosts := tree.AddBranch("hosts")
	for _, h := range s.Hosts {
		hosts.AddNode(h.describe())
	}
	return tree.String()
}

// DiffSnapshots renders the differences from a to b, or "" when equal.
func DiffSnapshots(a, b Snapshot) (string, error) {
	aj, err := a.JSON()
	if err != nil {
		return "", err
	}
	bj, err := b.JSON()
	if err != nil {
		return "", err
	}
	differ := gojsondiff.New()
	delta, err := differ.Compare(aj, bj)
	if err != nil {
		return "", fmt.Errorf("diffing snapshots: %w", err)
	}
	if !delta.Modified() {
		return "", nil
	}
	var leftObj interface{}
	if err := json.Unmarshal(aj, &leftObj); err != nil {
		return "", err
	}
	cfg := formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	}
	return formatter.NewAsciiFormatter(leftObj, cfg).Format(delta)
}
