package state

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

func TestParseExportFormat(t *testing.T) {
	for _, name := range []string{"json", "csv", "yaml"} {
		if _, err := ParseExportFormat(name); err != nil {
			t.Errorf("parse %s: %v", name, err)
		}
	}
	if _, err := ParseExportFormat("xml"); err == nil {
		t.Errorf("expected error for unsupported format")
	}
}

func TestExportRecordsCSV(t *testing.T) {
	destroyed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	records := []*models.DeploymentRecord{
		{
			ID:           "aws-us-east-1-x",
			Provider:     models.ProviderAWS,
			Region:       "us-east-1",
			Status:       models.StatusActive,
			PublicIP:     "54.1.2.3",
			InstanceType: "t3.micro",
			CreatedAt:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          "hetzner-fsn1-y",
			Provider:    models.ProviderHetzner,
			Region:      "fsn1",
			Status:      models.StatusDestroyed,
			CreatedAt:   time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC),
			DestroyedAt: &destroyed,
		},
	}

	out, err := ExportRecords(records, ExportCSV)
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows; got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,provider,region,status") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "54.1.2.3") {
		t.Errorf("active row missing public ip: %q", lines[1])
	}
	if !strings.Contains(lines[2], "2026-02-01T09:00:00Z") {
		t.Errorf("destroyed row missing timestamp: %q", lines[2])
	}
}

func TestExportRecordsJSONRoundTrip(t *testing.T) {
	records := []*models.DeploymentRecord{
		{
			ID:        "do-ams3-z",
			Provider:  models.ProviderDigitalOcean,
			Region:    "ams3",
			Status:    models.StatusActive,
			PublicIP:  "143.1.2.3",
			CreatedAt: time.Now().UTC(),
		},
	}
	out, err := ExportRecords(records, ExportJSON)
	if err != nil {
		t.Fatalf("export json: %v", err)
	}

	var back []*models.DeploymentRecord
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 1 || back[0].ID != "do-ams3-z" {
		t.Errorf("round trip mismatch: %+v", back)
	}
}
