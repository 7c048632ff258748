package activity

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaulttrail/internal/storage"
)

type ExportSuite struct {
	suite.Suite
	store    *BlobStore
	service  *Service
	exporter *Exporter
	clock    time.Time
}

func TestExportSuite(t *testing.T) {
	suite.Run(t, new(ExportSuite))
}

func (s *ExportSuite) SetupTest() {
	var err error
	s.store, err = NewBlobStore(storage.NewInMemoryKV())
	s.Require().NoError(err)

	s.clock = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return s.clock }

	s.service, err = New(s.store, WithClock(now))
	s.Require().NoError(err)
	s.exporter, err = NewExporter(s.store, s.service, WithExporterClock(now))
	s.Require().NoError(err)
}

// =============================================================================
// CSV rendering
// =============================================================================

func (s *ExportSuite) TestRenderCSV() {
	s.Run("empty collection yields the sentinel, not header plus rows", func() {
		s.Equal("No logs to export", RenderCSV(nil))
	})

	s.Run("details quoting doubles embedded quotes and quotes the field", func() {
		logs := []Log{{
			ID: "id-1", Timestamp: 1700000000000, Type: TypeDocumentCreated,
			Description: "create", Status: StatusSuccess,
			Details: map[string]any{"a": `b"c`},
		}}
		out := RenderCSV(logs)
		s.Contains(out, `"{""a"":""b\""c""}"`)
	})

	s.Run("csv round-trips through a standard parser", func() {
		logs := []Log{{
			ID: "id-1", Timestamp: 1700000000000, Type: TypeDocumentCreated,
			Description: `create "it", now`, Status: StatusSuccess,
			Details: map[string]any{"a": `b"c`},
		}}
		records, err := csv.NewReader(strings.NewReader(RenderCSV(logs))).ReadAll()
		s.Require().NoError(err)
		s.Require().Len(records, 2)

		row := records[1]
		s.Equal(`create "it", now`, row[4])
		s.Equal(`{"a":"b\"c"}`, row[8], "re-parsing recovers the original JSON text")
	})

	s.Run("sub-steps render as order dot description bracket status", func() {
		logs := []Log{{
			ID: "id-2", Timestamp: 1700000000000, Type: TypeAutofillExecuted,
			Description: "autofill", Status: StatusSuccess,
			SubSteps: []SubStep{
				{Order: 1, Description: "locate fields", Status: SubStepCompleted},
				{Order: 2, Description: "fill form", Status: SubStepFailed},
			},
		}}
		out := RenderCSV(logs)
		s.Contains(out, `"1. locate fields [completed]; 2. fill form [failed]"`)
	})

	s.Run("header and bare fields", func() {
		duration := int64(42)
		logs := []Log{{
			ID: "id-3", Timestamp: 1700000000000, Type: TypeDocumentRead,
			Description: "read", Status: StatusSuccess,
			Duration: &duration, UserDID: "did:nil:alice",
		}}
		out := RenderCSV(logs)
		lines := strings.Split(out, "\n")
		s.Require().Len(lines, 2)
		s.Equal("ID,Timestamp,Date,Type,Description,Status,Duration (ms),User DID,Details,Sub Steps", lines[0])
		s.Contains(lines[1], "id-3,1700000000000,2023-11-14T22:13:20.000Z,document_read,")
		s.Contains(lines[1], ",42,did:nil:alice,,")
	})
}

// =============================================================================
// JSON rendering
// =============================================================================

func (s *ExportSuite) TestRenderJSON() {
	logs := []Log{{
		ID: "id-1", Timestamp: 1700000000000, Type: TypeDocumentCreated,
		Description: "create", Status: StatusSuccess,
	}}

	out, err := RenderJSON(logs)
	s.Require().NoError(err)

	s.Run("renders a pretty array with two-space indentation", func() {
		s.True(strings.HasPrefix(out, "[\n  {\n    \"id\": \"id-1\","), out)
	})

	s.Run("round-trips to the same records", func() {
		var decoded []Log
		s.Require().NoError(json.Unmarshal([]byte(out), &decoded))
		s.Equal(logs, decoded)
	})

	s.Run("absent optional fields stay absent", func() {
		s.NotContains(out, "duration")
		s.NotContains(out, "subSteps")
		s.NotContains(out, "metadata")
	})
}

// =============================================================================
// Export entry point
// =============================================================================

func (s *ExportSuite) TestExport() {
	ctx := context.Background()

	_, err := s.service.LogActivity(ctx, TypeDocumentCreated, "doc one")
	s.Require().NoError(err)
	s.clock = s.clock.Add(time.Second)
	_, err = s.service.LogActivity(ctx, TypeDocumentRead, "doc read")
	s.Require().NoError(err)

	s.Run("names the file prefix dash epoch-ms dot format", func() {
		out, err := s.exporter.Export(ctx, FormatCSV)
		s.NoError(err)
		s.Equal("activity-logs-"+millis(s.clock)+".csv", out.FileName)
		s.Equal(2, out.RecordCount)
	})

	s.Run("appends a data_exported record after generation", func() {
		logs, err := s.store.Load(ctx)
		s.Require().NoError(err)
		s.Require().NotEmpty(logs)

		followUp := logs[0]
		s.Equal(TypeDataExported, followUp.Type)
		s.Equal("csv", followUp.Details["format"])
		s.Equal("activity-logs-"+millis(s.clock)+".csv", followUp.Details["fileName"])
		// JSON round-trip through the blob store widens ints to float64.
		s.EqualValues(2, followUp.Details["logCount"])
	})

	s.Run("exported content excludes the follow-up record", func() {
		out, err := s.exporter.Export(ctx, FormatJSON)
		s.NoError(err)
		s.Equal(3, out.RecordCount, "previous export's follow-up is part of this export")
		s.NotContains(out.Content, out.FileName)
	})

	s.Run("rejects unknown formats", func() {
		_, err := ParseFormat("xml")
		s.Error(err)
	})

	s.Run("exports a filtered view and still self-logs", func() {
		query := NewQuery(s.store)
		matches, err := query.Filter(ctx, Criteria{Type: TypeDocumentRead})
		s.Require().NoError(err)
		s.Require().Len(matches, 1)

		out, err := s.exporter.ExportFiltered(ctx, matches, FormatCSV)
		s.NoError(err)
		s.Equal(1, out.RecordCount)
		s.Contains(out.Content, "doc read")
		s.NotContains(out.Content, "doc one")

		logs, err := s.store.Load(ctx)
		s.Require().NoError(err)
		followUp := logs[0]
		s.Equal(TypeDataExported, followUp.Type)
		s.EqualValues(1, followUp.Details["logCount"])
	})

	s.Run("load failure fails the export before any self-logging", func() {
		failing, err := NewBlobStore(&storage.InMemoryKV{FailReads: true})
		s.Require().NoError(err)
		exporter, err := NewExporter(failing, s.service)
		s.Require().NoError(err)

		_, err = exporter.Export(ctx, FormatCSV)
		s.ErrorIs(err, storage.ErrUnavailable)
	})
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
