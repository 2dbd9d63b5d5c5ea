package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pricescout/models"
)

func sampleBatch() *models.BatchResult {
	rating := 4.5
	return &models.BatchResult{
		BatchID: "batch-1",
		QueryResults: []*models.QueryResult{
			{
				Query: models.SearchQuery{Text: "chair"},
				Products: []models.Product{
					{
						Title:         "Oak Chair",
						URL:           "https://shop.example/p/1",
						Price:         2499,
						Currency:      models.CurrencyINR,
						Availability:  models.InStock,
						Rating:        &rating,
						SourceID:      "amazon",
						OriginalQuery: "chair",
						ExtractedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
					},
					{
						Title:         "Pine Chair",
						URL:           "https://shop.example/p/2",
						Price:         1999,
						Currency:      models.CurrencyINR,
						Availability:  models.AvailUnknown,
						SourceID:      "flipkart",
						OriginalQuery: "chair",
						ExtractedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
					},
				},
			},
		},
		TotalProducts: 2,
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}
	if err := w.Write(sampleBatch()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}
	if rows[1][0] != "chair" || rows[1][1] != "amazon" || rows[1][2] != "Oak Chair" {
		t.Fatalf("row = %v", rows[1])
	}
	if rows[1][8] != "4.5" {
		t.Fatalf("rating column = %q, want 4.5", rows[1][8])
	}
	if rows[2][8] != "" {
		t.Fatalf("missing rating must serialise empty, got %q", rows[2][8])
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}
	if err := w.Write(sampleBatch()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded models.BatchResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.BatchID != "batch-1" || decoded.TotalProducts != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if len(decoded.QueryResults) != 1 || len(decoded.QueryResults[0].Products) != 2 {
		t.Fatalf("query results lost in round trip")
	}
}

func TestDualWriter(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out.csv")
	jsonPath := filepath.Join(dir, "out.json")
	w, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("new dual writer: %v", err)
	}
	if err := w.Write(sampleBatch()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}

func TestNewUnsupportedFormat(t *testing.T) {
	if _, err := New("xml", filepath.Join(t.TempDir(), "out.xml")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestNewDualDerivesFilenames(t *testing.T) {
	dir := t.TempDir()
	w, err := New("dual", filepath.Join(dir, "results.csv"))
	if err != nil {
		t.Fatalf("new dual: %v", err)
	}
	if err := w.Write(sampleBatch()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, name := range []string{"results.csv", "results.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}
