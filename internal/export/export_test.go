package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sapang3/vision-crowd/internal/contracts"
)

func sampleSnapshots() []contracts.RiskSnapshot {
	base := time.Date(2028, time.April, 8, 4, 30, 0, 0, time.UTC)
	return []contracts.RiskSnapshot{
		{
			ID: "a", Timestamp: base, Zone: "ram-ghat", Phase: "snan_window",
			IndexSet: contracts.IndexSet{
				CAI: 0.41, CDI: 0.52, THI: 0.31, TI: 0.7, EI: 0.9,
				ATI: 0.8, SNI: 0.85, PCI: 0.2,
			},
			BI: 0.705, PhysicalRisk: 0.598, ExtendedRisk: 0.641,
			Alert: contracts.LevelOrange,
		},
		{
			ID: "b", Timestamp: base.Add(5 * time.Second), Zone: "ram-ghat", Phase: "snan_window",
			BI: 0.4, PhysicalRisk: 0.2, ExtendedRisk: 0.28,
			Alert: contracts.LevelOrange, Degraded: true,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleSnapshots()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "timestamp", records[0][0])
	assert.Equal(t, "RiskExtended", records[0][13])

	assert.Equal(t, "2028-04-08T04:30:00Z", records[1][0])
	assert.Equal(t, "0.641", records[1][13])
	assert.Equal(t, "orange", records[1][14])
	assert.Equal(t, "false", records[1][15])
	assert.Equal(t, "true", records[2][15])
}

func TestWriteCSV_EmptyHistoryStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestBuildWorkbook(t *testing.T) {
	f, err := BuildWorkbook(sampleSnapshots())
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("History", "A1")
	require.NoError(t, err)
	assert.Equal(t, "timestamp", got)

	got, err = f.GetCellValue("History", "O2")
	require.NoError(t, err)
	assert.Equal(t, "orange", got)

	rows, err := f.GetRows("History")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
