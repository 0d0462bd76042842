package geometry

// nameSet is an insertion-ordered set of station names
type nameSet struct {
	order []string
	seen  map[string]struct{}
}

func (s *nameSet) add(name string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.order = append(s.order, name)
}

func (s *nameSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

type neighborSets struct {
	prev nameSet
	next nameSet
}

// Adjacency holds branch-aware prev/next relations per line
type Adjacency struct {
	lines map[string]map[string]*neighborSets // line key -> station name -> sets
}

// BuildAdjacency walks each line's node list. A node [a, b] makes a and b
// directly adjacent (a before b); repeated or branching observations merge
// into the sets instead of replacing them. Lines are indexed by id and also
// by display name; an id always wins over another line's display name.
func BuildAdjacency(lines []Line) *Adjacency {
	adj := &Adjacency{lines: make(map[string]map[string]*neighborSets)}

	for _, line := range lines {
		if line.ID == "" {
			continue
		}
		stations := adj.lines[line.ID]
		if stations == nil {
			stations = make(map[string]*neighborSets)
			adj.lines[line.ID] = stations
		}

		for _, node := range line.Nodes {
			if len(node) < 2 {
				continue
			}
			a, b := node[0], node[1]
			if a == "" || b == "" || a == b {
				continue
			}
			setsFor(stations, a).next.add(b)
			setsFor(stations, b).prev.add(a)
		}
	}

	// aliases go in only after every id is known
	for _, line := range lines {
		name := line.DisplayName()
		if line.ID == "" || name == line.ID {
			continue
		}
		if _, taken := adj.lines[name]; !taken {
			adj.lines[name] = adj.lines[line.ID]
		}
	}

	return adj
}

func setsFor(stations map[string]*neighborSets, name string) *neighborSets {
	sets, ok := stations[name]
	if !ok {
		sets = &neighborSets{}
		stations[name] = sets
	}
	return sets
}

// Lookup returns the neighbors of a station on a line. Unknown stations or
// lines yield empty lists, never nil.
func (a *Adjacency) Lookup(stationName, lineName string) Neighbors {
	out := Neighbors{Prev: []string{}, Next: []string{}}
	if a == nil {
		return out
	}
	sets, ok := a.lines[lineName][stationName]
	if !ok {
		return out
	}
	out.Prev = sets.prev.list()
	out.Next = sets.next.list()
	return out
}

// Line returns every station's neighbors on one line
func (a *Adjacency) Line(lineName string) map[string]Neighbors {
	if a == nil {
		return nil
	}
	stations, ok := a.lines[lineName]
	if !ok {
		return nil
	}
	out := make(map[string]Neighbors, len(stations))
	for name, sets := range stations {
		out[name] = Neighbors{Prev: sets.prev.list(), Next: sets.next.list()}
	}
	return out
}
