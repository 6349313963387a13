package salesfile

import "salescamp-controlplane/services/prize"

// ParticipantRow is one parsed line of an uploaded sales file. Achievement
// percentages are keyed by evaluation tier (national, divisional,
// individual, ...). Amount is nil when the column was empty.
type ParticipantRow struct {
	ParticipantID string             `json:"participant_id"`
	Name          string             `json:"name"`
	Achievements  map[string]float64 `json:"achievements"`
	Amount        *float64           `json:"amount"`
	Date          string             `json:"date"`
}

type Severity string

const (
	SeverityError Severity = "ERROR"
	// SeverityWarning is reserved for non-blocking anomalies surfaced by
	// the anomaly-detection collaborator; warnings never exclude a row.
	SeverityWarning Severity = "WARNING"
)

// Finding is a single validation failure attached to a row and field.
// Line is the 1-based display line in the file, accounting for the header.
type Finding struct {
	Line     int      `json:"line"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Report partitions an uploaded file into valid rows and findings.
type Report struct {
	ValidRows []ParticipantRow `json:"valid_rows"`
	Findings  []Finding        `json:"findings"`
}

// ScoreReport is the full outcome of a sales-file upload: validation
// findings plus prize results for the eligible rows.
type ScoreReport struct {
	ObjectKey  string         `json:"object_key,omitempty"`
	TotalRows  int            `json:"total_rows"`
	ValidRows  int            `json:"valid_rows"`
	Ineligible int            `json:"ineligible_rows"`
	Findings   []Finding      `json:"findings"`
	Results    []prize.Result `json:"results"`
}
