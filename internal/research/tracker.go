// Package research tracks the dependency-gated research tree: what is
// unlocked, what is in progress, and the single active research lane.
package research

import (
	"log/slog"
	"strings"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/lifeon/internal/catalog"
)

// Progress is the accumulated state of a node being researched.
type Progress struct {
	Node        *catalog.TechNode
	Accumulated int
	Paused      bool
}

// Ratio returns accumulated/cost clamped to [0, 1].
func (p *Progress) Ratio() float64 {
	if p.Node.Cost <= 0 {
		return 1
	}
	r := float64(p.Accumulated) / float64(p.Node.Cost)
	return min(1, max(0, r))
}

// ProgressRecord is the persisted form of one in-progress node.
type ProgressRecord struct {
	ID          string `json:"id"`
	Accumulated int    `json:"accumulated"`
	Paused      bool   `json:"paused"`
}

// SaveData is the persisted research state.
type SaveData struct {
	Unlocked    []string         `json:"unlocked"`
	Researching []ProgressRecord `json:"researching"`
	Active      string           `json:"active"`
}

// Tracker is the research runtime. Ids compare case-insensitively.
// It is not safe for concurrent use.
type Tracker struct {
	order    []*catalog.TechNode
	nodes    map[string]*catalog.TechNode
	unlocked mapset.Set[string]
	progress map[string]*Progress
	active   string
	starting string

	onStarted   []func(*catalog.TechNode)
	onCompleted []func(*catalog.TechNode)
}

// Option configures a new Tracker.
type Option func(*Tracker)

// WithUnlocked marks nodes as unlocked from the start. Completion observers
// are not fired for them and unknown ids are ignored.
func WithUnlocked(ids ...string) Option {
	return func(t *Tracker) {
		for _, id := range ids {
			k := key(id)
			if _, ok := t.nodes[k]; ok {
				t.unlocked.Put(k)
			} else if k != "" {
				slog.Warn("ignoring unknown pre-unlocked tech", "tech", id)
			}
		}
	}
}

// WithStartingNode overrides the starting node, which otherwise is the
// first node without dependencies.
func WithStartingNode(id string) Option {
	return func(t *Tracker) {
		if _, ok := t.nodes[key(id)]; ok {
			t.starting = key(id)
		}
	}
}

// NewTracker creates a tracker over the given nodes, keeping their order.
func NewTracker(techs []catalog.TechNode, opts ...Option) *Tracker {
	t := &Tracker{
		nodes:    make(map[string]*catalog.TechNode, len(techs)),
		unlocked: mapset.New[string](),
		progress: make(map[string]*Progress),
	}
	for i := range techs {
		n := &techs[i]
		if strings.TrimSpace(n.ID) == "" {
			continue
		}
		k := key(n.ID)
		if _, dup := t.nodes[k]; dup {
			continue
		}
		t.nodes[k] = n
		t.order = append(t.order, n)
		if t.starting == "" && len(n.Dependencies) == 0 {
			t.starting = k
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartingNode returns the id of the starting node, or "" when every node
// has dependencies.
func (t *Tracker) StartingNode() string {
	if n, ok := t.nodes[t.starting]; ok {
		return n.ID
	}
	return ""
}

func key(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

// OnStarted registers an observer fired when a node first starts accruing.
func (t *Tracker) OnStarted(fn func(*catalog.TechNode)) {
	t.onStarted = append(t.onStarted, fn)
}

// OnCompleted registers an observer fired when a node unlocks.
func (t *Tracker) OnCompleted(fn func(*catalog.TechNode)) {
	t.onCompleted = append(t.onCompleted, fn)
}

// Node looks up a node by id.
func (t *Tracker) Node(id string) (*catalog.TechNode, bool) {
	n, ok := t.nodes[key(id)]
	return n, ok
}

// Nodes returns every node in definition order.
func (t *Tracker) Nodes() []*catalog.TechNode {
	out := make([]*catalog.TechNode, len(t.order))
	copy(out, t.order)
	return out
}

// IsUnlocked reports whether a node is unlocked.
func (t *Tracker) IsUnlocked(id string) bool {
	return t.unlocked.Has(key(id))
}

// IsResearching reports whether a node has a progress entry.
func (t *Tracker) IsResearching(id string) bool {
	_, ok := t.progress[key(id)]
	return ok
}

// Active returns the id of the active node, or "" when the lane is empty.
func (t *Tracker) Active() string {
	if n, ok := t.nodes[t.active]; ok {
		return n.ID
	}
	return ""
}

func (t *Tracker) dependenciesMet(n *catalog.TechNode) bool {
	for _, dep := range n.Dependencies {
		if !t.unlocked.Has(key(dep)) {
			return false
		}
	}
	return true
}

// IsResearchable reports whether a node can be started fresh: all
// dependencies unlocked, and the node neither unlocked nor in progress.
func (t *Tracker) IsResearchable(id string) bool {
	k := key(id)
	n, ok := t.nodes[k]
	if !ok || t.unlocked.Has(k) {
		return false
	}
	if _, busy := t.progress[k]; busy {
		return false
	}
	return t.dependenciesMet(n)
}

// Researchable returns the researchable nodes in definition order.
func (t *Tracker) Researchable() []*catalog.TechNode {
	var out []*catalog.TechNode
	for _, n := range t.order {
		if t.IsResearchable(n.ID) {
			out = append(out, n)
		}
	}
	return out
}

// Researching returns every in-progress node, active or paused, in
// definition order.
func (t *Tracker) Researching() []*Progress {
	var out []*Progress
	for _, n := range t.order {
		if p, ok := t.progress[key(n.ID)]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Progress returns 1 for unlocked nodes, the accumulated ratio for nodes in
// progress, and 0 otherwise.
func (t *Tracker) Progress(id string) float64 {
	k := key(id)
	if t.unlocked.Has(k) {
		return 1
	}
	if p, ok := t.progress[k]; ok {
		return p.Ratio()
	}
	return 0
}

// StartResearch makes id the active node, pausing any other active node.
// Zero-cost nodes unlock immediately. Restarting the running node succeeds
// without change; a paused node resumes with its progress.
func (t *Tracker) StartResearch(id string) bool {
	k := key(id)
	n, ok := t.nodes[k]
	if !ok || t.unlocked.Has(k) || !t.dependenciesMet(n) {
		return false
	}

	if t.active == k {
		if p, ok := t.progress[k]; ok && !p.Paused {
			return true
		}
	}

	if n.Cost <= 0 {
		t.unlock(k)
		return true
	}

	p, exists := t.progress[k]
	if !exists {
		p = &Progress{Node: n}
		t.progress[k] = p
	}
	if t.active != "" && t.active != k {
		if cur, ok := t.progress[t.active]; ok {
			cur.Paused = true
		}
	}
	t.active = k
	p.Paused = false

	if !exists {
		slog.Debug("research started", "tech", n.ID, "cost", n.Cost)
		for _, fn := range t.onStarted {
			fn(n)
		}
	}
	return true
}

// CancelResearch stops research on id. With keepProgress the entry is
// paused; otherwise it is abandoned and its progress dropped.
func (t *Tracker) CancelResearch(id string, keepProgress bool) bool {
	k := key(id)
	p, ok := t.progress[k]
	if !ok {
		return false
	}
	if t.active == k {
		t.active = ""
	}
	if keepProgress {
		p.Paused = true
	} else {
		delete(t.progress, k)
	}
	return true
}

// Contribute adds points to id, starting it when allowed. Only the active
// node accrues. It returns true when the node is unlocked afterwards.
func (t *Tracker) Contribute(id string, points int) bool {
	if points <= 0 {
		return false
	}
	k := key(id)
	if t.unlocked.Has(k) {
		return true
	}
	p, ok := t.progress[k]
	if !ok {
		if !t.StartResearch(id) {
			return false
		}
		if t.unlocked.Has(k) {
			return true
		}
		if p, ok = t.progress[k]; !ok {
			return false
		}
	}
	if t.active != k {
		return false
	}

	p.Accumulated += points
	if p.Accumulated >= p.Node.Cost {
		t.unlock(k)
		return true
	}
	return false
}

// AddToActive contributes points to the active node, if any.
func (t *Tracker) AddToActive(points int) bool {
	if points <= 0 || t.active == "" {
		return false
	}
	return t.Contribute(t.active, points)
}

// ForceUnlock unlocks a node regardless of dependencies.
func (t *Tracker) ForceUnlock(id string) bool {
	k := key(id)
	if _, ok := t.nodes[k]; !ok {
		return false
	}
	t.unlock(k)
	return true
}

func (t *Tracker) unlock(k string) {
	delete(t.progress, k)
	if t.active == k {
		t.active = ""
	}
	if t.unlocked.Has(k) {
		return
	}
	t.unlocked.Put(k)

	n := t.nodes[k]
	slog.Info("research completed", "tech", n.ID)
	for _, fn := range t.onCompleted {
		fn(n)
	}
}

// Save returns the persisted research state in definition order.
func (t *Tracker) Save() SaveData {
	data := SaveData{
		Unlocked:    []string{},
		Researching: []ProgressRecord{},
		Active:      t.Active(),
	}
	for _, n := range t.order {
		k := key(n.ID)
		if t.unlocked.Has(k) {
			data.Unlocked = append(data.Unlocked, n.ID)
		}
		if p, ok := t.progress[k]; ok {
			data.Researching = append(data.Researching, ProgressRecord{
				ID:          n.ID,
				Accumulated: p.Accumulated,
				Paused:      p.Paused,
			})
		}
	}
	return data
}

// Load replaces the research state. Unknown ids are dropped, entries
// whose progress already covers the cost unlock, and the active node is
// restored or every entry is paused.
func (t *Tracker) Load(data SaveData) {
	t.unlocked = mapset.New[string]()
	t.progress = make(map[string]*Progress)
	t.active = ""

	for _, id := range data.Unlocked {
		k := key(id)
		if _, ok := t.nodes[k]; ok {
			t.unlocked.Put(k)
		} else {
			slog.Warn("dropping unknown unlocked tech", "tech", id)
		}
	}

	for _, item := range data.Researching {
		k := key(item.ID)
		n, ok := t.nodes[k]
		if !ok {
			slog.Warn("dropping unknown research entry", "tech", item.ID)
			continue
		}
		if t.unlocked.Has(k) {
			continue
		}
		p := &Progress{Node: n, Accumulated: max(0, item.Accumulated), Paused: item.Paused}
		if p.Accumulated >= n.Cost {
			t.unlocked.Put(k)
			continue
		}
		t.progress[k] = p
	}

	if p, ok := t.progress[key(data.Active)]; ok && data.Active != "" {
		t.active = key(data.Active)
		p.Paused = false
		for k, other := range t.progress {
			if k != t.active {
				other.Paused = true
			}
		}
		return
	}
	for _, p := range t.progress {
		p.Paused = true
	}
}
