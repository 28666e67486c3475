// internal/terraform/engine.go
package terraform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ProvisionSpec describes one endpoint to stand up. The template directory
// for the provider decides what the fields map to.
type ProvisionSpec struct {
	DeploymentID string
	Provider     string
	Region       string
	InstanceType string
	SSHPublicKey string
}

// Outputs contains the Terraform outputs proxygen needs to track an endpoint.
// Anything else the templates emit lands in Extra.
type Outputs struct {
	PublicIP   string
	PrivateIP  string
	InstanceID string
	Extra      map[string]string
}

// Engine drives Terraform for endpoint lifecycle. Each deployment gets its
// own workspace under workRoot so state survives between provision and
// destroy; templates are copied per-provider from templateDir.
type Engine struct {
	TemplateDir string
	WorkRoot    string
	AWSProfile  string
	logger      *slog.Logger
}

// NewEngine creates an engine with templates under templateDir/<provider>
// and per-deployment workspaces under workRoot.
func NewEngine(templateDir, workRoot, awsProfile string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		TemplateDir: templateDir,
		WorkRoot:    workRoot,
		AWSProfile:  awsProfile,
		logger:      logger,
	}
}

// Provision creates the endpoint and returns the outputs of the applied
// configuration. The workspace is kept on success; it holds the state
// Destroy needs later.
func (e *Engine) Provision(ctx context.Context, spec ProvisionSpec) (*Outputs, error) {
	fmt.Printf("🚀 Provisioning endpoint %s (%s/%s)\n", spec.DeploymentID, spec.Provider, spec.Region)

	workDir, err := e.prepareWorkspace(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	if err := e.initTerraform(ctx, workDir); err != nil {
		e.discardWorkspace(workDir)
		return nil, fmt.Errorf("failed to initialize terraform: %w", err)
	}

	if err := e.writeTfvars(workDir, spec); err != nil {
		e.discardWorkspace(workDir)
		return nil, fmt.Errorf("failed to write terraform vars: %w", err)
	}

	fmt.Println("📋 Planning endpoint changes...")
	if err := e.run(ctx, workDir, "plan", "-input=false", "-out=tfplan"); err != nil {
		e.discardWorkspace(workDir)
		return nil, fmt.Errorf("terraform plan failed: %w", err)
	}

	fmt.Println("🏗️  Applying endpoint changes...")
	if err := e.run(ctx, workDir, "apply", "-input=false", "-auto-approve", "tfplan"); err != nil {
		return nil, fmt.Errorf("terraform apply failed: %w", err)
	}

	outputs, err := e.readOutputs(ctx, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read terraform outputs: %w", err)
	}

	fmt.Printf("✅ Endpoint %s provisioned\n", spec.DeploymentID)
	return outputs, nil
}

// Destroy tears down the endpoint using the workspace kept from Provision.
// A missing workspace means there is nothing left to destroy.
func (e *Engine) Destroy(ctx context.Context, deploymentID string) error {
	workDir := filepath.Join(e.WorkRoot, deploymentID)
	if _, err := os.Stat(workDir); os.IsNotExist(err) {
		e.logger.Warn("no terraform workspace for deployment, skipping destroy", "deployment", deploymentID)
		return nil
	}

	fmt.Printf("💥 Destroying endpoint %s...\n", deploymentID)
	if err := e.run(ctx, workDir, "destroy", "-input=false", "-auto-approve"); err != nil {
		return fmt.Errorf("terraform destroy failed: %w", err)
	}

	e.discardWorkspace(workDir)
	fmt.Printf("✅ Endpoint %s destroyed\n", deploymentID)
	return nil
}

// Outputs reads the current outputs of an existing workspace without
// changing anything. Used to re-verify an endpoint's live attributes.
func (e *Engine) Outputs(ctx context.Context, deploymentID string) (*Outputs, error) {
	workDir := filepath.Join(e.WorkRoot, deploymentID)
	if _, err := os.Stat(workDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("no terraform workspace for deployment %s", deploymentID)
	}
	return e.readOutputs(ctx, workDir)
}

// prepareWorkspace copies the provider's templates into the deployment's
// workspace directory.
func (e *Engine) prepareWorkspace(spec ProvisionSpec) (string, error) {
	templateDir := filepath.Join(e.TemplateDir, spec.Provider)
	if _, err := os.Stat(templateDir); os.IsNotExist(err) {
		if err := EnsureTemplates(e.TemplateDir); err != nil {
			return "", fmt.Errorf("failed to materialize terraform templates: %w", err)
		}
	}
	if _, err := os.Stat(templateDir); os.IsNotExist(err) {
		return "", fmt.Errorf("no terraform templates for provider %s at %s", spec.Provider, templateDir)
	}

	workDir := filepath.Join(e.WorkRoot, spec.DeploymentID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}

	err := filepath.Walk(templateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(templateDir, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(workDir, relPath)
		if info.IsDir() {
			return os.MkdirAll(targetPath, info.Mode())
		}
		return copyFile(path, targetPath)
	})
	if err != nil {
		return "", fmt.Errorf("failed to copy terraform templates: %w", err)
	}
	return workDir, nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}

// initTerraform runs terraform init in the workspace.
func (e *Engine) initTerraform(ctx context.Context, workDir string) error {
	fmt.Println("🔧 Initializing Terraform...")
	cmd := exec.CommandContext(ctx, "terraform", "init", "-input=false")
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), e.terraformEnv()...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("terraform init failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// writeTfvars renders terraform.tfvars for the deployment.
func (e *Engine) writeTfvars(workDir string, spec ProvisionSpec) error {
	vars := fmt.Sprintf(`# Generated by proxygen - do not edit manually

deployment_id = "%s"
region = "%s"
instance_type = "%s"
endpoint_name = "proxygen-%s"
`, spec.DeploymentID, spec.Region, spec.InstanceType, spec.DeploymentID)

	if spec.SSHPublicKey != "" {
		vars += fmt.Sprintf("ssh_public_key = %q\n", spec.SSHPublicKey)
	}

	varsFile := filepath.Join(workDir, "terraform.tfvars")
	return os.WriteFile(varsFile, []byte(vars), 0644)
}

// run executes a terraform subcommand with output streamed to the user.
func (e *Engine) run(ctx context.Context, workDir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "terraform", args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), e.terraformEnv()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
	}()
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			fmt.Fprintf(os.Stderr, "%s\n", scanner.Text())
		}
	}()

	return cmd.Wait()
}

// readOutputs parses terraform output -json into Outputs.
func (e *Engine) readOutputs(ctx context.Context, workDir string) (*Outputs, error) {
	cmd := exec.CommandContext(ctx, "terraform", "output", "-json")
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), e.terraformEnv()...)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get terraform outputs: %w", err)
	}

	var rawOutputs map[string]struct {
		Value interface{} `json:"value"`
	}
	if err := json.Unmarshal(output, &rawOutputs); err != nil {
		return nil, fmt.Errorf("failed to parse terraform outputs: %w", err)
	}

	outputs := &Outputs{Extra: make(map[string]string)}
	for name, raw := range rawOutputs {
		val, ok := raw.Value.(string)
		if !ok {
			continue
		}
		switch name {
		case "public_ip":
			outputs.PublicIP = val
		case "private_ip":
			outputs.PrivateIP = val
		case "instance_id":
			outputs.InstanceID = val
		default:
			outputs.Extra[name] = val
		}
	}
	return outputs, nil
}

// terraformEnv returns environment variables for Terraform subprocesses.
func (e *Engine) terraformEnv() []string {
	env := []string{}
	if e.AWSProfile != "" {
		env = append(env, fmt.Sprintf("AWS_PROFILE=%s", e.AWSProfile))
	}
	// Disable Terraform CLI auto-upgrades for stability
	env = append(env, "TF_CLI_CONFIG_FILE=/dev/null")
	return env
}

// discardWorkspace removes a deployment workspace. Guarded to the configured
// root so a misconfigured path never deletes anything else.
func (e *Engine) discardWorkspace(workDir string) {
	if e.WorkRoot != "" && strings.HasPrefix(workDir, e.WorkRoot) {
		os.RemoveAll(workDir)
	}
}

// CheckTerraformInstalled verifies that Terraform is installed and accessible.
func CheckTerraformInstalled() error {
	cmd := exec.Command("terraform", "version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("terraform not found in PATH. Please install Terraform: https://terraform.io/downloads")
	}

	version := strings.Split(string(output), "\n")[0]
	fmt.Printf("🔧 Found %s\n", version)
	return nil
}
