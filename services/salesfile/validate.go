package salesfile

import (
	"fmt"
	"strings"
	"time"
)

// Accepted date layouts, tried in order.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// displayLine converts a 0-based row index to the 1-based line the user sees
// in the file, skipping the header row.
func displayLine(rowIndex int) int { return rowIndex + 2 }

// ValidateRow runs the structural checks in order and returns one Finding
// per failed check. A row may carry several findings.
func ValidateRow(row ParticipantRow, rowIndex int) []Finding {
	line := displayLine(rowIndex)
	var findings []Finding

	fail := func(field, message string) {
		findings = append(findings, Finding{
			Line:     line,
			Field:    field,
			Message:  message,
			Severity: SeverityError,
		})
	}

	if strings.TrimSpace(row.ParticipantID) == "" {
		fail("participant_id", fmt.Sprintf("line %d: participant id is required", line))
	}
	if strings.TrimSpace(row.Name) == "" {
		fail("name", fmt.Sprintf("line %d: name is required", line))
	}

	switch {
	case row.Amount == nil:
		fail("amount", fmt.Sprintf("line %d: amount is required", line))
	case *row.Amount <= 0:
		fail("amount", fmt.Sprintf("line %d: amount must be greater than zero", line))
	}

	switch {
	case strings.TrimSpace(row.Date) == "":
		fail("date", fmt.Sprintf("line %d: date is required", line))
	case !parseableDate(row.Date):
		fail("date", fmt.Sprintf("line %d: date %q is not a valid date (expected YYYY-MM-DD, DD/MM/YYYY or DD-MM-YYYY)", line, row.Date))
	}

	// A row measures nothing without at least one achievement percentage;
	// scoring would have no average to compute.
	if len(row.Achievements) == 0 {
		fail("achievements", fmt.Sprintf("line %d: at least one achievement percentage is required", line))
	}

	return findings
}

func parseableDate(value string) bool {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// ValidateFile checks every row and never stops at the first error. Rows
// with any finding are excluded from downstream prize computation; duplicate
// participant ids fail the later occurrence.
func ValidateFile(rows []ParticipantRow) Report {
	report := Report{}
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		findings := ValidateRow(row, i)

		id := strings.TrimSpace(row.ParticipantID)
		if id != "" {
			if firstLine, dup := seen[id]; dup {
				findings = append(findings, Finding{
					Line:     displayLine(i),
					Field:    "participant_id",
					Message:  fmt.Sprintf("line %d: participant id %q already appears on line %d", displayLine(i), id, firstLine),
					Severity: SeverityError,
				})
			} else {
				seen[id] = displayLine(i)
			}
		}

		if len(findings) == 0 {
			report.ValidRows = append(report.ValidRows, row)
		} else {
			report.Findings = append(report.Findings, findings...)
		}
	}

	return report
}
