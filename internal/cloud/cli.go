package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hemantobora/proxygen/internal/models"
)

// runCLIJSON executes a provider CLI that emits JSON and unmarshals the
// result. Failures preserve the CLI's stderr verbatim in a ProviderAPIError.
func runCLIJSON(ctx context.Context, provider models.Provider, region string, out any, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &models.ProviderAPIError{
			Provider: provider,
			Region:   region,
			Op:       name + " " + strings.Join(args, " "),
			RawText:  strings.TrimSpace(stderr.String()),
			Cause:    err,
		}
	}

	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return &models.ProviderAPIError{
			Provider: provider,
			Region:   region,
			Op:       name,
			RawText:  fmt.Sprintf("unparseable CLI output: %v", err),
			Cause:    err,
		}
	}
	return nil
}

// checkCLIInstalled verifies a provider CLI is on PATH.
func checkCLIInstalled(name, installHint string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s CLI not found in PATH. %s", name, installHint)
	}
	return nil
}
