package knowledge

import "time"

// Connection kinds.
const (
	KindSemantic = "semantic"
	KindConcept  = "concept"
)

// Score thresholds used by Stats.
const (
	HighPermanenceThreshold = 0.7
	HighEmergenceThreshold  = 0.5
)

// Note is an atomic unit of recorded knowledge with derived concept tags
// and heuristic scores.
type Note struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	Domain             string    `json:"domain"`
	ExperimentRef      *string   `json:"experiment_ref,omitempty"`
	Concepts           []string  `json:"concepts"`
	Connections        []string  `json:"connections"`
	PermanenceScore    float64   `json:"permanence_score"`
	EmergencePotential float64   `json:"emergence_potential"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Connection is a directed weighted edge between two notes.
// (SourceID, TargetID) is the natural key.
type Connection struct {
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Strength  float64   `json:"strength"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Insight is a materialized cross-domain observation about a note.
// Insights are append-only.
type Insight struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	SourceNoteID      string    `json:"source_note_id"`
	ConnectedConcepts []string  `json:"connected_concepts"`
	Domains           []string  `json:"domains"`
	Body              string    `json:"body"`
	ConfidenceScore   float64   `json:"confidence_score"`
	CreatedAt         time.Time `json:"created_at"`
}

// NoteFilter narrows ListNotes. Zero values disable a filter.
// MinPermanence and MinEmergence are strict lower bounds.
type NoteFilter struct {
	Domain           string
	MinPermanence    float64
	MinEmergence     float64
	OrderByEmergence bool
	Limit            int
}

// Stats holds aggregate knowledge base statistics.
type Stats struct {
	TotalNotes          int            `json:"total_notes"`
	DomainDistribution  map[string]int `json:"domain_distribution"`
	HighPermanenceCount int            `json:"high_permanence_count"`
	HighEmergenceCount  int            `json:"high_emergence_count"`
	TotalConnections    int            `json:"total_connections"`
	TotalInsights       int            `json:"total_insights"`
}

// ExportData is the full serializable dump of the knowledge base.
type ExportData struct {
	Version     string       `json:"version"`
	ExportedAt  time.Time    `json:"exported_at"`
	Notes       []Note       `json:"notes"`
	Connections []Connection `json:"connections"`
	Insights    []Insight    `json:"insights"`
}

// ImportResult holds counts of imported records.
type ImportResult struct {
	NotesImported       int `json:"notes_imported"`
	ConnectionsImported int `json:"connections_imported"`
	InsightsImported    int `json:"insights_imported"`
}
