package export

import (
	"strings"
	"testing"
)

func TestCSVExporterRendersHeadersAndRows(t *testing.T) {
	exporter := NewCSVExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"ID", "Name"},
		Rows: []map[string]string{
			{"ID": "1", "Name": "Anna Kowalska"},
			{"ID": "2", "Name": "Piotr, Zielinski"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected line count: %d", len(lines))
	}
	if lines[0] != "ID,Name" {
		t.Fatalf("unexpected header line: %s", lines[0])
	}
	if !strings.Contains(lines[2], `"Piotr, Zielinski"`) {
		t.Fatalf("expected quoted field, got: %s", lines[2])
	}
}

func TestCSVExporterMissingColumnRendersEmpty(t *testing.T) {
	exporter := NewCSVExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"ID", "Email"},
		Rows:    []map[string]string{{"ID": "1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	if lines[1] != "1," {
		t.Fatalf("unexpected row: %s", lines[1])
	}
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	if _, err := exporter.Render(Dataset{}); err == nil {
		t.Fatal("expected error for empty headers")
	}
}
