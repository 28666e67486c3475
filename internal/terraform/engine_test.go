package terraform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrepareWorkspaceCopiesProviderTemplates(t *testing.T) {
	templateDir := t.TempDir()
	workRoot := t.TempDir()

	awsDir := filepath.Join(templateDir, "aws")
	if err := os.MkdirAll(awsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(awsDir, "main.tf"), []byte(`resource "aws_instance" "endpoint" {}`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	engine := NewEngine(templateDir, workRoot, "", nil)
	spec := ProvisionSpec{DeploymentID: "aws-us-east-1-x", Provider: "aws", Region: "us-east-1"}

	workDir, err := engine.prepareWorkspace(spec)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if workDir != filepath.Join(workRoot, "aws-us-east-1-x") {
		t.Errorf("unexpected workspace %s", workDir)
	}
	copied, err := os.ReadFile(filepath.Join(workDir, "main.tf"))
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if !strings.Contains(string(copied), "aws_instance") {
		t.Errorf("template not copied: %q", copied)
	}

	// Embedded templates are materialized for providers the operator has not
	// customized.
	spec.Provider = "hetzner"
	spec.DeploymentID = "hetzner-fsn1-z"
	if _, err := engine.prepareWorkspace(spec); err != nil {
		t.Errorf("embedded hetzner templates should be materialized: %v", err)
	}
	if _, err := os.Stat(filepath.Join(templateDir, "hetzner", "main.tf")); err != nil {
		t.Errorf("materialized template missing: %v", err)
	}

	// A provider with no templates at all is an error, not an empty workspace.
	spec.Provider = "gcp"
	if _, err := engine.prepareWorkspace(spec); err == nil {
		t.Errorf("expected error for missing provider templates")
	}
}

func TestWriteTfvars(t *testing.T) {
	workDir := t.TempDir()
	engine := NewEngine(t.TempDir(), t.TempDir(), "", nil)

	spec := ProvisionSpec{
		DeploymentID: "hetzner-fsn1-y",
		Provider:     "hetzner",
		Region:       "fsn1",
		InstanceType: "cx11",
		SSHPublicKey: "ssh-ed25519 AAAA test",
	}
	if err := engine.writeTfvars(workDir, spec); err != nil {
		t.Fatalf("write tfvars: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "terraform.tfvars"))
	if err != nil {
		t.Fatalf("read tfvars: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		`deployment_id = "hetzner-fsn1-y"`,
		`region = "fsn1"`,
		`instance_type = "cx11"`,
		`endpoint_name = "proxygen-hetzner-fsn1-y"`,
		`ssh_public_key = "ssh-ed25519 AAAA test"`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("tfvars missing %q:\n%s", want, content)
		}
	}
}

func TestDestroyMissingWorkspaceIsNoOp(t *testing.T) {
	engine := NewEngine(t.TempDir(), t.TempDir(), "", nil)
	if err := engine.Destroy(context.Background(), "never-provisioned"); err != nil {
		t.Errorf("destroy without workspace should be a no-op: %v", err)
	}
}
