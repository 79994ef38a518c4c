// Package knowledge implements the persistent note repository for Zettel.
//
// It stores knowledge notes, the weighted connections between them and the
// cross-domain insights derived from them in a single SQLite database.
// The database is the only source of truth: graph views are derived from
// it on demand and never kept as separate state.
package knowledge

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeLayout is the textual timestamp format persisted in SQLite.
const timeLayout = time.RFC3339Nano

// exportVersion is the schema version written by Export.
const exportVersion = "1"

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds knowledge store configuration.
type Config struct {
	DataDir string
	DBName  string
}

// DefaultConfig returns the default configuration for the knowledge store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".zettel"),
		DBName:  "knowledge_graph.db",
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent knowledge repository backed by SQLite.
//
// All writes are serialized behind mu so that each note, connection and
// insight record is replaced as a unit even with concurrent callers.
type Store struct {
	db    *sql.DB
	cfg   Config
	mu    sync.Mutex
	hooks storeHooks
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec    func(db execer, query string, args ...any) (sql.Result, error)
	query   func(db queryer, query string, args ...any) (*sql.Rows, error)
	beginTx func(db *sql.DB) (*sql.Tx, error)
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryHook(db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(db, query, args...)
	}
	return db.Query(query, args...)
}

func (s *Store) beginTxHook() (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(s.db)
	}
	return s.db.Begin()
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.DBName == "" {
		cfg.DBName = DefaultConfig().DBName
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("knowledge: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, cfg.DBName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("knowledge: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS knowledge_notes (
			id                  TEXT PRIMARY KEY,
			title               TEXT NOT NULL,
			content             TEXT NOT NULL,
			domain              TEXT NOT NULL,
			experiment_ref      TEXT,
			concepts            TEXT NOT NULL DEFAULT '[]',
			connections         TEXT NOT NULL DEFAULT '[]',
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,
			permanence_score    REAL NOT NULL DEFAULT 0.0,
			emergence_potential REAL NOT NULL DEFAULT 0.0
		);

		CREATE INDEX IF NOT EXISTS idx_notes_domain    ON knowledge_notes(domain);
		CREATE INDEX IF NOT EXISTS idx_notes_emergence ON knowledge_notes(emergence_potential DESC);

		CREATE TABLE IF NOT EXISTS connections (
			source_id  TEXT NOT NULL,
			target_id  TEXT NOT NULL,
			strength   REAL NOT NULL,
			kind       TEXT NOT NULL DEFAULT 'semantic',
			created_at TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id)
		);

		CREATE INDEX IF NOT EXISTS idx_conn_target ON connections(target_id);

		CREATE TABLE IF NOT EXISTS insights (
			id                 TEXT PRIMARY KEY,
			title              TEXT NOT NULL,
			source_note_id     TEXT NOT NULL DEFAULT '',
			connected_concepts TEXT NOT NULL DEFAULT '[]',
			domains            TEXT NOT NULL DEFAULT '[]',
			body               TEXT NOT NULL DEFAULT '',
			confidence_score   REAL NOT NULL DEFAULT 0.0,
			created_at         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_insights_source ON insights(source_note_id);
	`
	_, err := s.execHook(s.db, schema)
	return err
}

// ─── Notes ───────────────────────────────────────────────────────────────────

const noteColumns = `id, title, content, domain, experiment_ref, concepts, connections,
	created_at, updated_at, permanence_score, emergence_potential`

// PutNote inserts or fully replaces a note by ID. The caller's CreatedAt
// is stored as given. Concepts are deduplicated and sorted; connections are
// deduplicated in order and never contain the note's own ID.
func (s *Store) PutNote(n *Note) error {
	if n == nil || strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("put note: empty id: %w", ErrInvalidInput)
	}

	n.Concepts = normalizeSet(n.Concepts)
	n.Connections = normalizeLinks(n.ID, n.Connections)

	concepts, err := json.Marshal(n.Concepts)
	if err != nil {
		return fmt.Errorf("put note: marshal concepts: %w", err)
	}
	links, err := json.Marshal(n.Connections)
	if err != nil {
		return fmt.Errorf("put note: marshal connections: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.execHook(s.db,
		`INSERT OR REPLACE INTO knowledge_notes (`+noteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, n.Domain, n.ExperimentRef,
		string(concepts), string(links),
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
		n.PermanenceScore, n.EmergencePotential,
	)
	return storageErr("put note", err)
}

// GetNote retrieves a single note by ID.
func (s *Store) GetNote(id string) (*Note, error) {
	rows, err := s.queryHook(s.db, `SELECT `+noteColumns+` FROM knowledge_notes WHERE id = ?`, id)
	if err != nil {
		return nil, storageErr("get note", err)
	}
	notes, err := scanNotes(rows)
	if err != nil {
		return nil, storageErr("get note", err)
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("note %q: %w", id, ErrNotFound)
	}
	return &notes[0], nil
}

// NoteExists reports whether a note with the given ID is stored.
func (s *Store) NoteExists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM knowledge_notes WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storageErr("note exists", err)
	}
	return true, nil
}

// ListNotes returns notes matching the filter. Without OrderByEmergence the
// order is by ID; with it, by descending emergence potential then ID.
func (s *Store) ListNotes(f NoteFilter) ([]Note, error) {
	return s.listNotes(s.db, f)
}

func (s *Store) listNotes(db queryer, f NoteFilter) ([]Note, error) {
	query := `SELECT ` + noteColumns + ` FROM knowledge_notes WHERE 1=1`
	args := []any{}

	if f.Domain != "" {
		query += " AND domain = ?"
		args = append(args, f.Domain)
	}
	if f.MinPermanence > 0 {
		query += " AND permanence_score > ?"
		args = append(args, f.MinPermanence)
	}
	if f.MinEmergence > 0 {
		query += " AND emergence_potential > ?"
		args = append(args, f.MinEmergence)
	}

	if f.OrderByEmergence {
		query += " ORDER BY emergence_potential DESC, id ASC"
	} else {
		query += " ORDER BY id ASC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.queryHook(db, query, args...)
	if err != nil {
		return nil, storageErr("list notes", err)
	}
	notes, err := scanNotes(rows)
	if err != nil {
		return nil, storageErr("list notes", err)
	}
	return notes, nil
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	defer func() { _ = rows.Close() }()

	var notes []Note
	for rows.Next() {
		var (
			n                Note
			concepts, links  string
			created, updated string
		)
		if err := rows.Scan(
			&n.ID, &n.Title, &n.Content, &n.Domain, &n.ExperimentRef,
			&concepts, &links, &created, &updated,
			&n.PermanenceScore, &n.EmergencePotential,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(concepts), &n.Concepts); err != nil {
			return nil, fmt.Errorf("decode concepts of %s: %w", n.ID, err)
		}
		if err := json.Unmarshal([]byte(links), &n.Connections); err != nil {
			return nil, fmt.Errorf("decode connections of %s: %w", n.ID, err)
		}
		n.CreatedAt = parseTime(created)
		n.UpdatedAt = parseTime(updated)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ─── Connections ─────────────────────────────────────────────────────────────

// PutConnection upserts the edge source→target. A later write for the same
// pair overwrites strength, kind and timestamp.
func (s *Store) PutConnection(source, target string, strength float64, kind string) error {
	if source == "" || target == "" {
		return fmt.Errorf("put connection: empty endpoint: %w", ErrInvalidInput)
	}
	if source == target {
		return fmt.Errorf("put connection: self-connection on %s: %w", source, ErrInvalidInput)
	}
	if kind == "" {
		kind = KindSemantic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execHook(s.db,
		`INSERT INTO connections (source_id, target_id, strength, kind, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id) DO UPDATE SET
		     strength = excluded.strength,
		     kind = excluded.kind,
		     created_at = excluded.created_at`,
		source, target, clamp01(strength), kind, formatTime(timeNow()),
	)
	return storageErr("put connection", err)
}

// ConnectionsFrom returns all edges whose source is id, ordered by target.
func (s *Store) ConnectionsFrom(id string) ([]Connection, error) {
	return s.queryConnections(s.db, "connections from",
		`SELECT source_id, target_id, strength, kind, created_at
		 FROM connections WHERE source_id = ? ORDER BY target_id`, id)
}

// ConnectionsTo returns all edges whose target is id, ordered by source.
func (s *Store) ConnectionsTo(id string) ([]Connection, error) {
	return s.queryConnections(s.db, "connections to",
		`SELECT source_id, target_id, strength, kind, created_at
		 FROM connections WHERE target_id = ? ORDER BY source_id`, id)
}

// ListConnections returns every stored edge.
func (s *Store) ListConnections() ([]Connection, error) {
	return s.listConnections(s.db)
}

func (s *Store) listConnections(db queryer) ([]Connection, error) {
	return s.queryConnections(db, "list connections",
		`SELECT source_id, target_id, strength, kind, created_at
		 FROM connections ORDER BY source_id, target_id`)
}

func (s *Store) queryConnections(db queryer, op, query string, args ...any) ([]Connection, error) {
	rows, err := s.queryHook(db, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Connection
	for rows.Next() {
		var c Connection
		var created string
		if err := rows.Scan(&c.SourceID, &c.TargetID, &c.Strength, &c.Kind, &created); err != nil {
			return nil, storageErr(op, err)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// ─── Insights ────────────────────────────────────────────────────────────────

const insightColumns = `id, title, source_note_id, connected_concepts, domains, body, confidence_score, created_at`

// PutInsight stores an insight record.
func (s *Store) PutInsight(in *Insight) error {
	if in == nil || strings.TrimSpace(in.ID) == "" {
		return fmt.Errorf("put insight: empty id: %w", ErrInvalidInput)
	}
	if in.ConnectedConcepts == nil {
		in.ConnectedConcepts = []string{}
	}
	if in.Domains == nil {
		in.Domains = []string{}
	}
	concepts, err := json.Marshal(in.ConnectedConcepts)
	if err != nil {
		return fmt.Errorf("put insight: marshal concepts: %w", err)
	}
	domains, err := json.Marshal(in.Domains)
	if err != nil {
		return fmt.Errorf("put insight: marshal domains: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.execHook(s.db,
		`INSERT OR REPLACE INTO insights (`+insightColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Title, in.SourceNoteID, string(concepts), string(domains),
		in.Body, in.ConfidenceScore, formatTime(in.CreatedAt),
	)
	return storageErr("put insight", err)
}

// GetInsight retrieves a single insight by ID.
func (s *Store) GetInsight(id string) (*Insight, error) {
	rows, err := s.queryHook(s.db, `SELECT `+insightColumns+` FROM insights WHERE id = ?`, id)
	if err != nil {
		return nil, storageErr("get insight", err)
	}
	out, err := scanInsights(rows)
	if err != nil {
		return nil, storageErr("get insight", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insight %q: %w", id, ErrNotFound)
	}
	return &out[0], nil
}

// ListInsights returns insights with confidence >= minConfidence, most
// confident first.
func (s *Store) ListInsights(minConfidence float64) ([]Insight, error) {
	return s.listInsights(s.db, minConfidence)
}

func (s *Store) listInsights(db queryer, minConfidence float64) ([]Insight, error) {
	rows, err := s.queryHook(db,
		`SELECT `+insightColumns+` FROM insights
		 WHERE confidence_score >= ?
		 ORDER BY confidence_score DESC, created_at ASC, id ASC`, minConfidence)
	if err != nil {
		return nil, storageErr("list insights", err)
	}
	out, err := scanInsights(rows)
	if err != nil {
		return nil, storageErr("list insights", err)
	}
	return out, nil
}

func scanInsights(rows *sql.Rows) ([]Insight, error) {
	defer func() { _ = rows.Close() }()

	var out []Insight
	for rows.Next() {
		var (
			in                Insight
			concepts, domains string
			created           string
		)
		if err := rows.Scan(&in.ID, &in.Title, &in.SourceNoteID, &concepts, &domains,
			&in.Body, &in.ConfidenceScore, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(concepts), &in.ConnectedConcepts); err != nil {
			return nil, fmt.Errorf("decode concepts of %s: %w", in.ID, err)
		}
		if err := json.Unmarshal([]byte(domains), &in.Domains); err != nil {
			return nil, fmt.Errorf("decode domains of %s: %w", in.ID, err)
		}
		in.CreatedAt = parseTime(created)
		out = append(out, in)
	}
	return out, rows.Err()
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats returns aggregate statistics over the current state.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{DomainDistribution: map[string]int{}}

	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&stats.TotalNotes, "SELECT COUNT(*) FROM knowledge_notes", nil},
		{&stats.HighPermanenceCount, "SELECT COUNT(*) FROM knowledge_notes WHERE permanence_score > ?", []any{HighPermanenceThreshold}},
		{&stats.HighEmergenceCount, "SELECT COUNT(*) FROM knowledge_notes WHERE emergence_potential > ?", []any{HighEmergenceThreshold}},
		{&stats.TotalConnections, "SELECT COUNT(*) FROM connections", nil},
		{&stats.TotalInsights, "SELECT COUNT(*) FROM insights", nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query, c.args...).Scan(c.dst); err != nil {
			return nil, storageErr("stats", err)
		}
	}

	rows, err := s.queryHook(s.db, "SELECT domain, COUNT(*) FROM knowledge_notes GROUP BY domain")
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var domain string
		var n int
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, storageErr("stats", err)
		}
		stats.DomainDistribution[domain] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats", err)
	}

	return stats, nil
}

// ─── Export / Import ─────────────────────────────────────────────────────────

// Export dumps the entire knowledge base as a serializable struct. All
// three tables are read inside one transaction, so a concurrent write never
// shows up in only part of the snapshot.
func (s *Store) Export() (*ExportData, error) {
	tx, err := s.beginTxHook()
	if err != nil {
		return nil, storageErr("export: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	notes, err := s.listNotes(tx, NoteFilter{})
	if err != nil {
		return nil, fmt.Errorf("export notes: %w", err)
	}
	conns, err := s.listConnections(tx)
	if err != nil {
		return nil, fmt.Errorf("export connections: %w", err)
	}
	insights, err := s.listInsights(tx, 0)
	if err != nil {
		return nil, fmt.Errorf("export insights: %w", err)
	}
	return &ExportData{
		Version:     exportVersion,
		ExportedAt:  timeNow().UTC(),
		Notes:       notes,
		Connections: conns,
		Insights:    insights,
	}, nil
}

// Import loads exported data in a single transaction. Existing records with
// the same keys are replaced.
func (s *Store) Import(data *ExportData) (*ImportResult, error) {
	if data == nil {
		return nil, fmt.Errorf("import: no data: %w", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, storageErr("import: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &ImportResult{}

	for _, n := range data.Notes {
		if n.ID == "" {
			continue
		}
		concepts, err := json.Marshal(normalizeSet(n.Concepts))
		if err != nil {
			return nil, fmt.Errorf("import note %s: marshal concepts: %w", n.ID, err)
		}
		links, err := json.Marshal(normalizeLinks(n.ID, n.Connections))
		if err != nil {
			return nil, fmt.Errorf("import note %s: marshal connections: %w", n.ID, err)
		}
		if _, err := s.execHook(tx,
			`INSERT OR REPLACE INTO knowledge_notes (`+noteColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Title, n.Content, n.Domain, n.ExperimentRef,
			string(concepts), string(links),
			formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
			n.PermanenceScore, n.EmergencePotential,
		); err != nil {
			return nil, storageErr("import note "+n.ID, err)
		}
		result.NotesImported++
	}

	for _, c := range data.Connections {
		if c.SourceID == "" || c.TargetID == "" || c.SourceID == c.TargetID {
			continue
		}
		if _, err := s.execHook(tx,
			`INSERT OR REPLACE INTO connections (source_id, target_id, strength, kind, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			c.SourceID, c.TargetID, clamp01(c.Strength), c.Kind, formatTime(c.CreatedAt),
		); err != nil {
			return nil, storageErr("import connection", err)
		}
		result.ConnectionsImported++
	}

	for _, in := range data.Insights {
		if in.ID == "" {
			continue
		}
		if in.ConnectedConcepts == nil {
			in.ConnectedConcepts = []string{}
		}
		if in.Domains == nil {
			in.Domains = []string{}
		}
		concepts, err := json.Marshal(in.ConnectedConcepts)
		if err != nil {
			return nil, fmt.Errorf("import insight %s: marshal concepts: %w", in.ID, err)
		}
		domains, err := json.Marshal(in.Domains)
		if err != nil {
			return nil, fmt.Errorf("import insight %s: marshal domains: %w", in.ID, err)
		}
		if _, err := s.execHook(tx,
			`INSERT OR REPLACE INTO insights (`+insightColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ID, in.Title, in.SourceNoteID, string(concepts), string(domains),
			in.Body, in.ConfidenceScore, formatTime(in.CreatedAt),
		); err != nil {
			return nil, storageErr("import insight "+in.ID, err)
		}
		result.InsightsImported++
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("import: commit", err)
	}
	return result, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// timeNow is a package-level variable for testability.
var timeNow = time.Now

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = timeNow()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// normalizeSet trims, deduplicates and sorts.
func normalizeSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// normalizeLinks keeps first occurrences in order and drops self links.
func normalizeLinks(self string, ids []string) []string {
	seen := map[string]bool{self: true}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
