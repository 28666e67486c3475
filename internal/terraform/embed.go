package terraform

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// NOTE: embed patterns are relative to this file's directory (internal/terraform).

// Embedded per-provider endpoint templates.
//
//go:embed templates/aws/*.tf templates/azure/*.tf templates/digitalocean/*.tf templates/hetzner/*.tf
var endpointTemplates embed.FS

// EnsureTemplates materializes the embedded templates for every provider into
// targetDir, one subdirectory per provider. Files already present are left
// alone, so an operator may edit the materialized copies.
func EnsureTemplates(targetDir string) error {
	return fs.WalkDir(endpointTemplates, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel("templates", path)
		if err != nil {
			return err
		}
		dest := filepath.Join(targetDir, rel)
		if _, err := os.Stat(dest); err == nil {
			return nil
		}
		content, err := endpointTemplates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, content, 0644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		return nil
	})
}
