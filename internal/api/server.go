// Package api provides the HTTP API for observing and steering a settlement.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
// Every handler reaches the simulation through the engine runner.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/lifeon/internal/building"
	"github.com/talgya/lifeon/internal/engine"
	"github.com/talgya/lifeon/internal/persistence"
	"github.com/talgya/lifeon/internal/social"
	"github.com/talgya/lifeon/internal/world"
)

// Server serves the settlement over HTTP.
type Server struct {
	Runner   *engine.Runner
	DB       *persistence.DB // nil disables /api/v1/save
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// SaveID names the record /api/v1/save writes to. Empty picks a fresh id
	// on the first save and reuses it afterwards. Only touched on the runner.
	SaveID   string
	SaveName string

	upgrader websocket.Upgrader
	streamMu sync.Mutex
	hub      *hub
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	// Ending turns is the expensive call; keep clients from spinning on it.
	turnLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/buildings", s.handleBuildings)
	mux.HandleFunc("/api/v1/building/", s.handleBuildingDetail)
	mux.HandleFunc("/api/v1/resources", s.handleResources)
	mux.HandleFunc("/api/v1/research", s.handleResearch)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/lines", s.handleLines)
	mux.HandleFunc("/api/v1/map/", s.handleHexDetail)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("/api/v1/turn", s.adminOnly(RateLimitMiddleware(turnLimiter, s.handleTurn)))
	mux.HandleFunc("/api/v1/build", s.adminOnly(s.handleBuild))
	mux.HandleFunc("/api/v1/demolish", s.adminOnly(s.handleDemolish))
	mux.HandleFunc("/api/v1/research/start", s.adminOnly(s.handleResearchStart))
	mux.HandleFunc("/api/v1/line", s.adminOnly(s.handleLineCreate))
	mux.HandleFunc("/api/v1/save", s.adminOnly(s.handleSave))

	return mux
}

// ListenAndServe serves the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require POST and bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no LIFEON_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// view runs fn on the runner. An httpError carries its own status; any
// other failure means the runner is gone (503).
func (s *Server) view(w http.ResponseWriter, r *http.Request, fn func(*engine.Simulation) error) bool {
	if err := s.Runner.Do(r.Context(), fn); err != nil {
		status := http.StatusServiceUnavailable
		var he httpError
		if errors.As(err, &he) {
			status = he.status
		}
		http.Error(w, err.Error(), status)
		return false
	}
	return true
}

type httpError struct {
	status int
	err    error
}

func (e httpError) Error() string { return e.err.Error() }
func (e httpError) Unwrap() error { return e.err }

func badRequest(err error) error { return httpError{status: http.StatusBadRequest, err: err} }
func notFound(err error) error   { return httpError{status: http.StatusNotFound, err: err} }

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		st := sim.RefreshStats()
		status = map[string]any{
			"round":          st.Round,
			"blocked":        sim.Turns.IsBlocked(),
			"blocks":         sim.Turns.BlockCount(),
			"buildings":      st.Buildings,
			"population":     st.Population,
			"workers":        st.Workers,
			"unemployed":     st.Unemployed,
			"stored_goods":   st.StoredGoods,
			"capacity":       st.Capacity,
			"unlocked_techs": st.UnlockedTechs,
			"researching":    sim.Research().Active(),
			"seed":           sim.Gen.Seed,
		}
		return nil
	})
	if ok {
		writeJSON(w, status)
	}
}

type buildingSummary struct {
	ID         string         `json:"id"`
	Archetype  string         `json:"archetype"`
	Name       string         `json:"name"`
	Center     world.HexCoord `json:"center"`
	Level      int            `json:"level"`
	Exp        int            `json:"exp"`
	Population int            `json:"population"`
	Workers    int            `json:"workers"`
	Products   []string       `json:"products,omitempty"`
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	archFilter := r.URL.Query().Get("archetype")

	var out []buildingSummary
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		for _, b := range sim.Buildings() {
			if archFilter != "" && b.ArchetypeID() != archFilter {
				continue
			}
			out = append(out, summarize(b))
		}
		return nil
	})
	if ok {
		writeJSON(w, out)
	}
}

func (s *Server) handleBuildingDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/building/")
	if id == "" {
		http.Error(w, "usage: /api/v1/building/:id", http.StatusBadRequest)
		return
	}

	type ruleInfo struct {
		Kind      string `json:"kind"`
		Name      string `json:"name"`
		Lifecycle string `json:"lifecycle"`
		Remaining int    `json:"remaining_rounds,omitempty"`
	}
	var detail map[string]any
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		b, found := sim.Building(id)
		if !found {
			return notFound(fmt.Errorf("building %s not found", id))
		}
		rules := make([]ruleInfo, 0, len(b.Rules()))
		for _, rule := range b.Rules() {
			rules = append(rules, ruleInfo{
				Kind:      rule.Kind(),
				Name:      rule.Name(),
				Lifecycle: string(rule.Lifecycle()),
				Remaining: rule.RemainingRounds(),
			})
		}
		detail = map[string]any{
			"id":         b.ID(),
			"archetype":  b.ArchetypeID(),
			"name":       b.Name(),
			"center":     b.Center(),
			"occupied":   b.Occupied(),
			"level":      b.LevelIndex() + 1,
			"exp":        b.CurrentExp(),
			"population": b.CurrentPopulation(),
			"workers":    b.CurrentWorkers(),
			"traffic":    b.Traffic(),
			"products":   b.Products(),
			"stats":      b.Stats(),
			"rules":      rules,
		}
		return nil
	})
	if ok {
		writeJSON(w, detail)
	}
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	var out map[string]any
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		res := sim.Resources()
		out = map[string]any{
			"capacity":   res.TotalCapacity(),
			"used":       res.UsedCapacity(),
			"free":       res.FreeCapacity(),
			"stock":      res.Snapshot(),
			"producible": res.Producible(),
		}
		return nil
	})
	if ok {
		writeJSON(w, out)
	}
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	type techInfo struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Cost         int      `json:"cost"`
		Dependencies []string `json:"dependencies,omitempty"`
		Unlocked     bool     `json:"unlocked"`
		Researchable bool     `json:"researchable"`
		Progress     float64  `json:"progress"`
	}
	var out []techInfo
	var active string
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		tr := sim.Research()
		active = tr.Active()
		for _, n := range tr.Nodes() {
			out = append(out, techInfo{
				ID:           n.ID,
				Name:         n.Name,
				Cost:         n.Cost,
				Dependencies: n.Dependencies,
				Unlocked:     tr.IsUnlocked(n.ID),
				Researchable: tr.IsResearchable(n.ID),
				Progress:     tr.Progress(n.ID),
			})
		}
		return nil
	})
	if ok {
		writeJSON(w, map[string]any{"active": active, "techs": out})
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		for _, e := range sim.Events {
			if category == "" || e.Category == category {
				events = append(events, e)
			}
		}
		return nil
	})
	if !ok {
		return
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	type lineInfo struct {
		Supply string           `json:"supply"`
		Order  int              `json:"creation_order"`
		Route  []world.HexCoord `json:"route"`
	}
	var out []lineInfo
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		for _, l := range sim.Lines().Lines() {
			out = append(out, lineInfo{Supply: l.SupplyID, Order: l.CreationOrder, Route: slices.Clone(l.Route)})
		}
		return nil
	})
	if ok {
		writeJSON(w, out)
	}
}

// handleHexDetail serves GET /api/v1/map/:q/:r.
func (s *Server) handleHexDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	// /api/v1/map/:q/:r → parts[0]="" [1]="api" [2]="v1" [3]="map" [4]=q [5]=r
	if len(parts) < 6 {
		http.Error(w, "usage: /api/v1/map/:q/:r", http.StatusBadRequest)
		return
	}
	q, err1 := strconv.Atoi(parts[4])
	rr, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	coord := world.Axial(q, rr)

	var detail map[string]any
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		cell := sim.WorldMap.Get(coord)
		if cell == nil {
			return notFound(fmt.Errorf("hex %s not found", coord))
		}
		auras := map[string]int{}
		for _, cat := range []social.AuraCategory{social.AuraSecurity, social.AuraHealth, social.AuraBeauty} {
			if v := sim.Environment().Value(coord, cat); v != 0 {
				auras[string(cat)] = v
			}
		}
		detail = map[string]any{
			"coord":      coord,
			"terrain":    world.TerrainName(cell.Terrain),
			"road":       cell.Road,
			"elevation":  cell.Elevation,
			"resistance": sim.WorldMap.Resistance(coord),
			"buildable":  sim.WorldMap.CanPlace(coord),
			"auras":      auras,
		}
		if b, found := sim.BuildingAt(coord); found {
			detail["building"] = b.ID()
		}
		return nil
	})
	if ok {
		writeJSON(w, detail)
	}
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var ran bool
	var stats engine.SimStats
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		sim.Turns.Tick()
		ran = sim.EndTurn()
		stats = sim.RefreshStats()
		return nil
	})
	if !ok {
		return
	}
	if !ran {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"ended": false, "message": "turn is blocked"})
		return
	}
	writeJSON(w, map[string]any{"ended": true, "stats": stats})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Archetype string `json:"archetype"`
		Q         *int   `json:"q,omitempty"`
		R         *int   `json:"r,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Archetype == "" {
		http.Error(w, "archetype is required", http.StatusBadRequest)
		return
	}

	var out buildingSummary
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		var b *building.Building
		var err error
		if req.Q == nil || req.R == nil {
			b, err = sim.PlaceAuto(req.Archetype)
		} else {
			b, err = sim.Place(req.Archetype, world.Axial(*req.Q, *req.R))
		}
		if errors.Is(err, engine.ErrUnknownArchetype) {
			return notFound(err)
		}
		if err != nil {
			return httpError{status: http.StatusUnprocessableEntity, err: err}
		}
		out = summarize(b)
		return nil
	})
	if ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(out)
	}
}

func summarize(b *building.Building) buildingSummary {
	return buildingSummary{
		ID:         b.ID(),
		Archetype:  b.ArchetypeID(),
		Name:       b.Name(),
		Center:     b.Center(),
		Level:      b.LevelIndex() + 1,
		Exp:        b.CurrentExp(),
		Population: b.CurrentPopulation(),
		Workers:    b.CurrentWorkers(),
		Products:   b.Products(),
	}
}

func (s *Server) handleDemolish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "body must be {\"id\": ...}", http.StatusBadRequest)
		return
	}
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		if err := sim.Demolish(req.ID); err != nil {
			return notFound(err)
		}
		return nil
	})
	if ok {
		writeJSON(w, map[string]any{"demolished": req.ID})
	}
}

func (s *Server) handleResearchStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tech   string `json:"tech"`
		Cancel bool   `json:"cancel,omitempty"`
		Keep   bool   `json:"keep_progress,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tech == "" {
		http.Error(w, "body must be {\"tech\": ...}", http.StatusBadRequest)
		return
	}
	var active string
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		tr := sim.Research()
		if req.Cancel {
			if !tr.CancelResearch(req.Tech, req.Keep) {
				return badRequest(fmt.Errorf("%s is not being researched", req.Tech))
			}
		} else if !tr.StartResearch(req.Tech) {
			return badRequest(fmt.Errorf("%s cannot be researched now", req.Tech))
		}
		active = tr.Active()
		return nil
	})
	if ok {
		writeJSON(w, map[string]any{"active": active})
	}
}

func (s *Server) handleLineCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Supply string `json:"supply"`
		From   string `json:"from"`
		To     string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	var order int
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		from, found := sim.Building(req.From)
		if !found {
			return notFound(fmt.Errorf("building %s not found", req.From))
		}
		to, found := sim.Building(req.To)
		if !found {
			return notFound(fmt.Errorf("building %s not found", req.To))
		}

		// Extend the newest line of this supply ending at from, or start one.
		for _, l := range sim.Lines().Lines() {
			if l.SupplyID == req.Supply && l.Tail() == from.Center() {
				if err := sim.Lines().Extend(l, from, to); err != nil {
					return badRequest(err)
				}
				order = l.CreationOrder
				return nil
			}
		}
		l, err := sim.Lines().Create(req.Supply, from, to)
		if err != nil {
			return badRequest(err)
		}
		order = l.CreationOrder
		return nil
	})
	if ok {
		writeJSON(w, map[string]any{"creation_order": order})
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var data engine.SaveData
	var events []engine.Event
	ok := s.view(w, r, func(sim *engine.Simulation) error {
		// Runs on the runner goroutine, which also serializes SaveID.
		data = sim.Save(s.SaveID, s.SaveName)
		s.SaveID = data.ID
		events = slices.Clone(sim.Events)
		return nil
	})
	if !ok {
		return
	}
	if err := s.DB.SaveGame(data, events); err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"id":      data.ID,
		"round":   data.Turn.Round,
		"message": "settlement saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
