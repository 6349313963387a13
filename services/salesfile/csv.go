package salesfile

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"salescamp-controlplane/pkg/errutil"
)

// Fixed columns recognized in the header; every other column is treated as an
// achievement tier percentage (e.g. national, divisional, individual).
var fixedColumns = map[string]struct{}{
	"participant_id": {},
	"name":           {},
	"amount":         {},
	"date":           {},
}

// ParseCSV maps a headered CSV stream into participant rows. Unparseable
// cell values are left zero/nil so validation reports them per row instead
// of rejecting the whole file.
func ParseCSV(r io.Reader) ([]ParticipantRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errutil.ValidationFailed("sales file is empty")
	}
	if err != nil {
		return nil, errutil.ValidationFailed("sales file header is malformed", errutil.WithErr(err))
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []ParticipantRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errutil.ValidationFailed("sales file contains a malformed record", errutil.WithErr(err))
		}

		row := ParticipantRow{Achievements: map[string]float64{}}
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			value = strings.TrimSpace(value)

			switch columns[i] {
			case "participant_id":
				row.ParticipantID = value
			case "name":
				row.Name = value
			case "date":
				row.Date = value
			case "amount":
				if value == "" {
					continue
				}
				if amount, err := strconv.ParseFloat(value, 64); err == nil {
					row.Amount = &amount
				}
			default:
				if value == "" {
					continue
				}
				if pct, err := strconv.ParseFloat(value, 64); err == nil {
					row.Achievements[columns[i]] = pct
				}
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
