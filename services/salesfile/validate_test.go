package salesfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func amount(v float64) *float64 { return &v }

func validRow(id, name string) ParticipantRow {
	return ParticipantRow{
		ParticipantID: id,
		Name:          name,
		Achievements:  map[string]float64{"national": 110, "individual": 90},
		Amount:        amount(1500),
		Date:          "2026-03-15",
	}
}

func TestValidateRow_Valid(t *testing.T) {
	require.Empty(t, ValidateRow(validRow("p1", "Ana"), 0))
}

func TestValidateRow_AcceptedDateFormats(t *testing.T) {
	for _, date := range []string{"2026-03-15", "15/03/2026", "15-03-2026"} {
		row := validRow("p1", "Ana")
		row.Date = date
		require.Empty(t, ValidateRow(row, 0), "date %s", date)
	}
}

func TestValidateRow_RejectsImpossibleCalendarDate(t *testing.T) {
	row := validRow("p1", "Ana")
	row.Date = "2026-02-30"

	findings := ValidateRow(row, 0)
	require.Len(t, findings, 1)
	require.Equal(t, "date", findings[0].Field)
}

func TestValidateRow_MissingAmountAndBadDate(t *testing.T) {
	row := validRow("p1", "Ana")
	row.Amount = nil
	row.Date = "soon"

	findings := ValidateRow(row, 3)
	require.Len(t, findings, 2)

	// Display line accounts for the header row.
	require.Equal(t, 5, findings[0].Line)
	require.Equal(t, "amount", findings[0].Field)
	require.Equal(t, 5, findings[1].Line)
	require.Equal(t, "date", findings[1].Field)

	for _, f := range findings {
		require.Equal(t, SeverityError, f.Severity)
		require.Contains(t, f.Message, "line 5")
	}
}

func TestValidateRow_ChecksRunInOrder(t *testing.T) {
	row := ParticipantRow{Amount: amount(-5), Date: ""}

	findings := ValidateRow(row, 0)
	require.Len(t, findings, 5)
	require.Equal(t, "participant_id", findings[0].Field)
	require.Equal(t, "name", findings[1].Field)
	require.Equal(t, "amount", findings[2].Field)
	require.Equal(t, "date", findings[3].Field)
	require.Equal(t, "achievements", findings[4].Field)
}

func TestValidateRow_RequiresAchievements(t *testing.T) {
	row := validRow("p1", "Ana")
	row.Achievements = map[string]float64{}

	findings := ValidateRow(row, 2)
	require.Len(t, findings, 1)
	require.Equal(t, "achievements", findings[0].Field)
	require.Equal(t, 4, findings[0].Line)
	require.Contains(t, findings[0].Message, "line 4")
}

func TestValidateFile_IsExhaustive(t *testing.T) {
	rows := []ParticipantRow{
		validRow("p1", "Ana"),
		{ParticipantID: "p2", Name: "", Amount: nil, Date: "bad"},
		validRow("p3", "Carla"),
		{ParticipantID: "", Name: "Davi", Amount: amount(10), Date: "2026-01-01"},
	}

	report := ValidateFile(rows)
	require.Len(t, report.ValidRows, 2)
	// Row 2 carries four findings, row 4 two; all reported, none dropped.
	require.Len(t, report.Findings, 6)
}

func TestValidateFile_DuplicateParticipantID(t *testing.T) {
	rows := []ParticipantRow{
		validRow("p1", "Ana"),
		validRow("p1", "Ana again"),
	}

	report := ValidateFile(rows)
	require.Len(t, report.ValidRows, 1)
	require.Len(t, report.Findings, 1)
	require.Equal(t, "participant_id", report.Findings[0].Field)
	require.Equal(t, 3, report.Findings[0].Line)
	require.Contains(t, report.Findings[0].Message, "already appears on line 2")
}
