// Package persistence provides SQLite-based settlement storage and
// compressed snapshot files.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/lifeon/internal/building"
	"github.com/talgya/lifeon/internal/engine"
	"github.com/talgya/lifeon/internal/research"
	"github.com/talgya/lifeon/internal/transport"
	"github.com/talgya/lifeon/internal/world"
)

// ErrSaveNotFound is returned when a save id does not exist.
var ErrSaveNotFound = errors.New("save not found")

// DB wraps a SQLite connection for settlement persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps WAL checkpoints and in-memory databases consistent.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		round INTEGER NOT NULL,
		active_research TEXT NOT NULL,
		gen_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS buildings (
		save_id TEXT NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		instance_id TEXT NOT NULL,
		archetype_id TEXT NOT NULL,
		center_q INTEGER NOT NULL,
		center_r INTEGER NOT NULL,
		level INTEGER NOT NULL,
		exp INTEGER NOT NULL,
		population INTEGER NOT NULL,
		workers INTEGER NOT NULL,
		occupied_json TEXT NOT NULL,
		data_json TEXT NOT NULL,
		PRIMARY KEY (save_id, instance_id)
	);

	CREATE TABLE IF NOT EXISTS inventory (
		save_id TEXT NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
		supply_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		PRIMARY KEY (save_id, supply_id)
	);

	CREATE TABLE IF NOT EXISTS research (
		save_id TEXT NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		tech_id TEXT NOT NULL,
		unlocked INTEGER NOT NULL,
		accumulated INTEGER NOT NULL,
		paused INTEGER NOT NULL,
		PRIMARY KEY (save_id, tech_id)
	);

	CREATE TABLE IF NOT EXISTS transport_lines (
		save_id TEXT NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
		creation_order INTEGER NOT NULL,
		supply_id TEXT NOT NULL,
		route_json TEXT NOT NULL,
		PRIMARY KEY (save_id, creation_order)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		save_id TEXT NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
		round INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_save ON events(save_id, round);
	CREATE INDEX IF NOT EXISTS idx_saves_saved_at ON saves(saved_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// buildingExtras holds the free-form per-instance maps.
type buildingExtras struct {
	Ints    map[string]int             `json:"ints,omitempty"`
	Floats  map[string]float64         `json:"floats,omitempty"`
	Vectors map[string]building.Vector `json:"vectors,omitempty"`
	Strings map[string]string          `json:"strings,omitempty"`
}

// SaveGame writes a snapshot, replacing any save with the same id. The
// whole save is written in one transaction.
func (db *DB) SaveGame(data engine.SaveData, events []engine.Event) error {
	genJSON, err := json.Marshal(data.Gen)
	if err != nil {
		return fmt.Errorf("encode gen config: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := clearSave(tx, data.ID); err != nil {
		return fmt.Errorf("clear save %s: %w", data.ID, err)
	}
	if _, err := tx.Exec(`INSERT INTO saves (id, name, saved_at, round, active_research, gen_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		data.ID, data.Name, data.SavedAt.UTC().Format(time.RFC3339Nano),
		data.Turn.Round, data.Research.Active, string(genJSON),
	); err != nil {
		return fmt.Errorf("insert save %s: %w", data.ID, err)
	}

	if err := saveBuildings(tx, data.ID, data.Buildings); err != nil {
		return err
	}

	for id, amount := range data.Inventory.Inventory {
		if _, err := tx.Exec("INSERT INTO inventory (save_id, supply_id, amount) VALUES (?, ?, ?)",
			data.ID, id, amount); err != nil {
			return fmt.Errorf("insert inventory %s: %w", id, err)
		}
	}

	if err := saveResearch(tx, data.ID, data.Research); err != nil {
		return err
	}

	for _, l := range data.Transport.Lines {
		routeJSON, err := json.Marshal(l.Route)
		if err != nil {
			return fmt.Errorf("encode route %d: %w", l.CreationOrder, err)
		}
		if _, err := tx.Exec(`INSERT INTO transport_lines (save_id, creation_order, supply_id, route_json)
			VALUES (?, ?, ?, ?)`, data.ID, l.CreationOrder, l.SupplyID, string(routeJSON)); err != nil {
			return fmt.Errorf("insert transport line %d: %w", l.CreationOrder, err)
		}
	}

	for _, e := range events {
		if _, err := tx.Exec("INSERT INTO events (save_id, round, description, category) VALUES (?, ?, ?, ?)",
			data.ID, e.Round, e.Description, e.Category); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", "last_save", data.ID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("settlement saved", "save", data.ID, "name", data.Name, "buildings", len(data.Buildings), "round", data.Turn.Round)
	return nil
}

// clearSave removes a save and its rows. It reports how many saves were
// removed.
func clearSave(tx *sqlx.Tx, id string) (int64, error) {
	for _, table := range []string{"buildings", "inventory", "research", "transport_lines", "events"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE save_id = ?", id); err != nil {
			return 0, err
		}
	}
	res, err := tx.Exec("DELETE FROM saves WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func saveBuildings(tx *sqlx.Tx, saveID string, records []building.SaveData) error {
	stmt, err := tx.Preparex(`INSERT INTO buildings
		(save_id, seq, instance_id, archetype_id, center_q, center_r,
		 level, exp, population, workers, occupied_json, data_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, b := range records {
		occupiedJSON, err := json.Marshal(b.Occupied)
		if err != nil {
			return fmt.Errorf("encode cells of %s: %w", b.InstanceID, err)
		}
		dataJSON, err := json.Marshal(buildingExtras{Ints: b.Ints, Floats: b.Floats, Vectors: b.Vectors, Strings: b.Strings})
		if err != nil {
			return fmt.Errorf("encode data of %s: %w", b.InstanceID, err)
		}
		if _, err := stmt.Exec(
			saveID, i, b.InstanceID, b.ArchetypeID, b.Center.Q, b.Center.R,
			b.Level, b.Exp, b.Population, b.Workers,
			string(occupiedJSON), string(dataJSON),
		); err != nil {
			return fmt.Errorf("insert building %s: %w", b.InstanceID, err)
		}
	}
	return nil
}

func saveResearch(tx *sqlx.Tx, saveID string, data research.SaveData) error {
	type row struct {
		unlocked    bool
		accumulated int
		paused      bool
	}
	rows := make(map[string]*row)
	var order []string
	get := func(id string) *row {
		if r, ok := rows[id]; ok {
			return r
		}
		r := &row{}
		rows[id] = r
		order = append(order, id)
		return r
	}
	for _, id := range data.Unlocked {
		get(id).unlocked = true
	}
	for _, p := range data.Researching {
		r := get(p.ID)
		r.accumulated = p.Accumulated
		r.paused = p.Paused
	}

	for i, id := range order {
		r := rows[id]
		if _, err := tx.Exec(`INSERT INTO research (save_id, seq, tech_id, unlocked, accumulated, paused)
			VALUES (?, ?, ?, ?, ?, ?)`, saveID, i, id, r.unlocked, r.accumulated, r.paused); err != nil {
			return fmt.Errorf("insert research %s: %w", id, err)
		}
	}
	return nil
}

// SaveInfo describes a stored save.
type SaveInfo struct {
	ID      string    `db:"id"`
	Name    string    `db:"name"`
	SavedAt time.Time `db:"-"`
	Round   int       `db:"round"`

	SavedAtRaw string `db:"saved_at"`
}

// ListSaves returns every save, newest first.
func (db *DB) ListSaves() ([]SaveInfo, error) {
	var saves []SaveInfo
	if err := db.conn.Select(&saves, "SELECT id, name, saved_at, round FROM saves ORDER BY saved_at DESC"); err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	for i := range saves {
		saves[i].SavedAt, _ = time.Parse(time.RFC3339Nano, saves[i].SavedAtRaw)
	}
	return saves, nil
}

// LoadGame reads a save back into its snapshot form.
func (db *DB) LoadGame(id string) (engine.SaveData, error) {
	var head struct {
		ID             string `db:"id"`
		Name           string `db:"name"`
		SavedAt        string `db:"saved_at"`
		Round          int    `db:"round"`
		ActiveResearch string `db:"active_research"`
		GenJSON        string `db:"gen_json"`
	}
	err := db.conn.Get(&head, "SELECT id, name, saved_at, round, active_research, gen_json FROM saves WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.SaveData{}, fmt.Errorf("load %s: %w", id, ErrSaveNotFound)
	}
	if err != nil {
		return engine.SaveData{}, fmt.Errorf("load %s: %w", id, err)
	}

	data := engine.SaveData{ID: head.ID, Name: head.Name}
	data.SavedAt, _ = time.Parse(time.RFC3339Nano, head.SavedAt)
	data.Turn.Round = head.Round
	if err := json.Unmarshal([]byte(head.GenJSON), &data.Gen); err != nil {
		return engine.SaveData{}, fmt.Errorf("decode gen config: %w", err)
	}

	if data.Buildings, err = db.loadBuildings(id); err != nil {
		return engine.SaveData{}, err
	}

	var stock []struct {
		SupplyID string `db:"supply_id"`
		Amount   int    `db:"amount"`
	}
	if err := db.conn.Select(&stock, "SELECT supply_id, amount FROM inventory WHERE save_id = ?", id); err != nil {
		return engine.SaveData{}, fmt.Errorf("load inventory: %w", err)
	}
	data.Inventory.Inventory = make(map[string]int, len(stock))
	for _, s := range stock {
		data.Inventory.Inventory[s.SupplyID] = s.Amount
	}

	if data.Research, err = db.loadResearch(id); err != nil {
		return engine.SaveData{}, err
	}
	data.Research.Active = head.ActiveResearch

	if data.Transport, err = db.loadLines(id); err != nil {
		return engine.SaveData{}, err
	}
	return data, nil
}

func (db *DB) loadBuildings(saveID string) ([]building.SaveData, error) {
	var rows []struct {
		InstanceID   string `db:"instance_id"`
		ArchetypeID  string `db:"archetype_id"`
		CenterQ      int    `db:"center_q"`
		CenterR      int    `db:"center_r"`
		Level        int    `db:"level"`
		Exp          int    `db:"exp"`
		Population   int    `db:"population"`
		Workers      int    `db:"workers"`
		OccupiedJSON string `db:"occupied_json"`
		DataJSON     string `db:"data_json"`
	}
	err := db.conn.Select(&rows, `SELECT instance_id, archetype_id, center_q, center_r,
		level, exp, population, workers, occupied_json, data_json
		FROM buildings WHERE save_id = ? ORDER BY seq`, saveID)
	if err != nil {
		return nil, fmt.Errorf("load buildings: %w", err)
	}

	out := make([]building.SaveData, 0, len(rows))
	for _, r := range rows {
		rec := building.SaveData{
			ArchetypeID: r.ArchetypeID,
			Center:      world.Axial(r.CenterQ, r.CenterR),
			InstanceID:  r.InstanceID,
			Level:       r.Level,
			Exp:         r.Exp,
			Population:  r.Population,
			Workers:     r.Workers,
		}
		if err := json.Unmarshal([]byte(r.OccupiedJSON), &rec.Occupied); err != nil {
			return nil, fmt.Errorf("decode cells of %s: %w", r.InstanceID, err)
		}
		var extras buildingExtras
		if err := json.Unmarshal([]byte(r.DataJSON), &extras); err != nil {
			return nil, fmt.Errorf("decode data of %s: %w", r.InstanceID, err)
		}
		rec.Ints, rec.Floats, rec.Vectors, rec.Strings = extras.Ints, extras.Floats, extras.Vectors, extras.Strings
		out = append(out, rec)
	}
	return out, nil
}

func (db *DB) loadResearch(saveID string) (research.SaveData, error) {
	var rows []struct {
		TechID      string `db:"tech_id"`
		Unlocked    bool   `db:"unlocked"`
		Accumulated int    `db:"accumulated"`
		Paused      bool   `db:"paused"`
	}
	err := db.conn.Select(&rows, `SELECT tech_id, unlocked, accumulated, paused
		FROM research WHERE save_id = ? ORDER BY seq`, saveID)
	if err != nil {
		return research.SaveData{}, fmt.Errorf("load research: %w", err)
	}

	data := research.SaveData{Unlocked: []string{}, Researching: []research.ProgressRecord{}}
	for _, r := range rows {
		if r.Unlocked {
			data.Unlocked = append(data.Unlocked, r.TechID)
			continue
		}
		data.Researching = append(data.Researching, research.ProgressRecord{
			ID:          r.TechID,
			Accumulated: r.Accumulated,
			Paused:      r.Paused,
		})
	}
	return data, nil
}

func (db *DB) loadLines(saveID string) (transport.SaveData, error) {
	var rows []struct {
		CreationOrder int    `db:"creation_order"`
		SupplyID      string `db:"supply_id"`
		RouteJSON     string `db:"route_json"`
	}
	err := db.conn.Select(&rows, `SELECT creation_order, supply_id, route_json
		FROM transport_lines WHERE save_id = ? ORDER BY creation_order`, saveID)
	if err != nil {
		return transport.SaveData{}, fmt.Errorf("load transport lines: %w", err)
	}

	data := transport.SaveData{Lines: make([]transport.LineRecord, 0, len(rows))}
	for _, r := range rows {
		rec := transport.LineRecord{SupplyID: r.SupplyID, CreationOrder: r.CreationOrder}
		if err := json.Unmarshal([]byte(r.RouteJSON), &rec.Route); err != nil {
			return transport.SaveData{}, fmt.Errorf("decode route %d: %w", r.CreationOrder, err)
		}
		data.Lines = append(data.Lines, rec)
	}
	return data, nil
}

// DeleteSave removes a save and everything stored under it.
func (db *DB) DeleteSave(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	n, err := clearSave(tx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrSaveNotFound)
	}
	return tx.Commit()
}

// SaveMeta stores a key-value pair in the metadata table.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// RecentEvents returns the most recent events of a save, newest first.
func (db *DB) RecentEvents(saveID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT round, description, category FROM events WHERE save_id = ? ORDER BY id DESC LIMIT ?",
		saveID, limit,
	)
	return events, err
}
