// Package transport keeps the supply lines drawn between buildings. A line
// carries one supply along an ordered chain of building centers.
package transport

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/talgya/lifeon/internal/world"
)

// Node is a building as seen by the line manager.
type Node interface {
	ID() string
	Center() world.HexCoord
	Occupied() []world.HexCoord
	TransportRadius() float64
}

// Resolver finds the node occupying a cell.
type Resolver interface {
	NodeAt(c world.HexCoord) (Node, bool)
}

// Line is one supply line. CreationOrder is unique and increasing.
type Line struct {
	SupplyID      string
	CreationOrder int
	Route         []world.HexCoord
}

// Start returns the first node's center.
func (l *Line) Start() world.HexCoord { return l.Route[0] }

// Tail returns the last node's center.
func (l *Line) Tail() world.HexCoord { return l.Route[len(l.Route)-1] }

// ContainsSegment reports whether a and b are adjacent on the route, in
// either direction.
func (l *Line) ContainsSegment(a, b world.HexCoord) bool {
	for i := 1; i < len(l.Route); i++ {
		p, q := l.Route[i-1], l.Route[i]
		if (p == a && q == b) || (p == b && q == a) {
			return true
		}
	}
	return false
}

// LineRecord is the persisted form of a line.
type LineRecord struct {
	SupplyID      string           `json:"supply_id"`
	CreationOrder int              `json:"creation_order"`
	Route         []world.HexCoord `json:"route"`
}

// SaveData is the persisted set of lines.
type SaveData struct {
	Lines []LineRecord `json:"lines"`
}

// Manager owns every line. It is not safe for concurrent use.
type Manager struct {
	costs    world.ResistanceSource
	nodes    Resolver
	supplies func(id string) bool

	lines   []*Line
	counter int
}

// NewManager creates an empty manager. knownSupply reports whether a supply
// id exists in the catalog.
func NewManager(costs world.ResistanceSource, nodes Resolver, knownSupply func(id string) bool) *Manager {
	return &Manager{costs: costs, nodes: nodes, supplies: knownSupply}
}

// Lines returns every line in creation order.
func (m *Manager) Lines() []*Line {
	return slices.Clone(m.lines)
}

// LinesFrom returns the lines starting at a node's center, newest first.
func (m *Manager) LinesFrom(start world.HexCoord) []*Line {
	var out []*Line
	for i := len(m.lines) - 1; i >= 0; i-- {
		if m.lines[i].Start() == start {
			out = append(out, m.lines[i])
		}
	}
	return out
}

// Reaches reports whether to lies within from's transport radius, measured
// as terrain resistance from any cell from occupies to any cell to occupies.
func (m *Manager) Reaches(from, to Node) bool {
	radius := from.TransportRadius()
	if radius <= 0 {
		return false
	}
	reach := world.Reachable(m.costs, from.Occupied(), radius)
	for _, c := range to.Occupied() {
		if _, ok := reach[c]; ok {
			return true
		}
	}
	return false
}

// Create starts a new line carrying supplyID from start to next.
func (m *Manager) Create(supplyID string, start, next Node) (*Line, error) {
	if m.supplies != nil && !m.supplies(supplyID) {
		return nil, fmt.Errorf("unknown supply %q", supplyID)
	}
	if start.ID() == next.ID() {
		return nil, fmt.Errorf("line cannot connect %s to itself", start.ID())
	}
	for _, l := range m.lines {
		if l.SupplyID == supplyID && l.ContainsSegment(start.Center(), next.Center()) {
			return nil, fmt.Errorf("segment %s-%s already carries %s", start.Center(), next.Center(), supplyID)
		}
	}
	if !m.Reaches(start, next) {
		return nil, fmt.Errorf("%s is out of transport range of %s", next.ID(), start.ID())
	}

	m.counter++
	l := &Line{
		SupplyID:      supplyID,
		CreationOrder: m.counter,
		Route:         []world.HexCoord{start.Center(), next.Center()},
	}
	m.lines = append(m.lines, l)
	slog.Debug("transport line created", "supply", supplyID, "order", l.CreationOrder)
	return l, nil
}

// Extend appends next to the end of a line. Only the line's tail node may
// extend it.
func (m *Manager) Extend(l *Line, tail, next Node) error {
	if !slices.Contains(m.lines, l) {
		return fmt.Errorf("line %d is not managed", l.CreationOrder)
	}
	if tail.Center() != l.Tail() {
		return fmt.Errorf("%s is not the tail of line %d", tail.ID(), l.CreationOrder)
	}
	if slices.Contains(l.Route, next.Center()) {
		return fmt.Errorf("line %d already visits %s", l.CreationOrder, next.Center())
	}
	if !m.Reaches(tail, next) {
		return fmt.Errorf("%s is out of transport range of %s", next.ID(), tail.ID())
	}
	l.Route = append(l.Route, next.Center())
	return nil
}

// Delete removes a line. It reports whether the line was managed.
func (m *Manager) Delete(l *Line) bool {
	n := len(m.lines)
	m.lines = slices.DeleteFunc(m.lines, func(x *Line) bool { return x == l })
	return len(m.lines) != n
}

// DeleteLastFrom removes the newest line starting at start.
func (m *Manager) DeleteLastFrom(start world.HexCoord) bool {
	if ls := m.LinesFrom(start); len(ls) > 0 {
		return m.Delete(ls[0])
	}
	return false
}

// DropNode cuts every line at the first visit of a removed building's
// center. Lines left with fewer than two nodes are deleted.
func (m *Manager) DropNode(center world.HexCoord) {
	kept := m.lines[:0]
	for _, l := range m.lines {
		if i := slices.Index(l.Route, center); i >= 0 {
			l.Route = l.Route[:i]
		}
		if len(l.Route) >= 2 {
			kept = append(kept, l)
		}
	}
	clear(m.lines[len(kept):])
	m.lines = kept
}

// Save returns the persisted lines in creation order.
func (m *Manager) Save() SaveData {
	data := SaveData{Lines: make([]LineRecord, 0, len(m.lines))}
	for _, l := range m.lines {
		data.Lines = append(data.Lines, LineRecord{
			SupplyID:      l.SupplyID,
			CreationOrder: l.CreationOrder,
			Route:         slices.Clone(l.Route),
		})
	}
	return data
}

// Load replaces every line with the saved ones. Lines are restored in
// creation order. A line is dropped when its supply is unknown or its start
// node is gone; it is cut at the first missing later node and kept only
// with at least two nodes. The creation counter resumes after the highest
// saved order.
func (m *Manager) Load(data SaveData) {
	m.lines = nil
	m.counter = 0

	records := slices.Clone(data.Lines)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreationOrder < records[j].CreationOrder
	})

	for _, rec := range records {
		if len(rec.Route) < 2 {
			continue
		}
		if m.supplies != nil && !m.supplies(rec.SupplyID) {
			slog.Warn("dropping transport line: unknown supply", "supply", rec.SupplyID, "order", rec.CreationOrder)
			continue
		}
		if _, ok := m.nodes.NodeAt(rec.Route[0]); !ok {
			slog.Warn("dropping transport line: start node missing", "order", rec.CreationOrder, "start", rec.Route[0])
			continue
		}

		m.counter = max(m.counter, rec.CreationOrder)

		route := []world.HexCoord{rec.Route[0]}
		for _, c := range rec.Route[1:] {
			if _, ok := m.nodes.NodeAt(c); !ok {
				slog.Warn("transport line truncated", "order", rec.CreationOrder, "missing", c)
				break
			}
			route = append(route, c)
		}
		if len(route) < 2 {
			continue
		}
		m.lines = append(m.lines, &Line{
			SupplyID:      rec.SupplyID,
			CreationOrder: rec.CreationOrder,
			Route:         route,
		})
	}
}
