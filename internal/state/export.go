package state

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hemantobora/proxygen/internal/models"
)

// ExportFormat selects the serialization used by ExportRecords.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportYAML ExportFormat = "yaml"
)

// ParseExportFormat validates a user-supplied format name.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportJSON, ExportCSV, ExportYAML:
		return ExportFormat(s), nil
	}
	return "", &models.ValidationError{Field: "export", Message: fmt.Sprintf("unsupported export format %q (expected json, csv or yaml)", s)}
}

// ExportRecords serializes deployment records for external consumption.
func ExportRecords(records []*models.DeploymentRecord, format ExportFormat) (string, error) {
	switch format {
	case ExportJSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal records: %w", err)
		}
		return string(data), nil

	case ExportYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			return "", fmt.Errorf("failed to marshal records: %w", err)
		}
		return string(data), nil

	case ExportCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"id", "provider", "region", "status", "public_ip", "instance_type", "created_at", "destroyed_at"}); err != nil {
			return "", fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, rec := range records {
			destroyed := ""
			if rec.DestroyedAt != nil {
				destroyed = rec.DestroyedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			row := []string{
				rec.ID,
				string(rec.Provider),
				rec.Region,
				string(rec.Status),
				rec.PublicIP,
				rec.InstanceType,
				rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				destroyed,
			}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("failed to write csv row: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", fmt.Errorf("failed to flush csv: %w", err)
		}
		return buf.String(), nil

	default:
		return "", &models.ValidationError{Field: "export", Message: "unsupported export format " + strconv.Quote(string(format))}
	}
}
