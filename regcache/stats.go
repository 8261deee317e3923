package regcache

// Stats counts backend traffic and state transitions since the last Start.
type Stats struct {
	Loads     int `json:"loads"`
	Stores    int `json:"stores"`
	Evictions int `json:"evictions"`
	Binds     int `json:"binds"`
	Scratches int `json:"scratches"`
	Reverts   int `json:"reverts"`
	Commits   int `json:"commits"`
	Forks     int `json:"forks"`
	Discards  int `json:"discards"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Loads += o.Loads
	s.Stores += o.Stores
	s.Evictions += o.Evictions
	s.Binds += o.Binds
	s.Scratches += o.Scratches
	s.Reverts += o.Reverts
	s.Commits += o.Commits
	s.Forks += o.Forks
	s.Discards += o.Discards
}

// Traffic is the number of backend moves.
func (s Stats) Traffic() int {
	return s.Loads + s.Stores
}
