package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/urfave/cli/v2"

	"github.com/hemantobora/proxygen/internal/chain"
	"github.com/hemantobora/proxygen/internal/cloud"
	"github.com/hemantobora/proxygen/internal/config"
	"github.com/hemantobora/proxygen/internal/conflict"
	"github.com/hemantobora/proxygen/internal/cost"
	"github.com/hemantobora/proxygen/internal/deploy"
	"github.com/hemantobora/proxygen/internal/models"
	"github.com/hemantobora/proxygen/internal/reconcile"
	"github.com/hemantobora/proxygen/internal/state"
	"github.com/hemantobora/proxygen/internal/terraform"
)

// Exit codes: 0 proceed/success, 1 abort (conflict, over budget, or any
// error), 2 warn (a confirmation was required and declined).
const (
	exitAbort = 1
	exitWarn  = 2
)

// app bundles the wired components every command needs.
type app struct {
	cfg    *config.Config
	store  *state.Store
	chains *state.ChainStore
	logger *slog.Logger
}

// newApp loads configuration and opens the stores.
func newApp(c *cli.Context) (*app, error) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if profile := c.String("profile"); profile != "" {
		cfg.Providers.AWSProfile = profile
		if cfg.Backup.AWSProfile == "" {
			cfg.Backup.AWSProfile = profile
		}
	}

	store, err := state.Open(cfg.StateDir, cfg.Registry.LockTimeout, logger)
	if err != nil {
		return nil, err
	}
	chains, err := state.NewChainStore(store, cfg.Chains.SubnetPool, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, chains: chains, logger: logger}, nil
}

func (a *app) close() {
	a.store.Close()
}

// deployer wires the full provisioning pipeline.
func (a *app) deployer() *deploy.Deployer {
	engine := terraform.NewEngine(
		a.cfg.TerraformDir,
		filepath.Join(a.cfg.StateDir, "workspaces"),
		a.cfg.Providers.AWSProfile,
		a.logger,
	)
	checker := conflict.New(a.store, a.logger)
	gate := cost.NewGate(a.cfg.Cost.WarnThresholds)
	return deploy.NewDeployer(a.store, checker, gate, engine, a.cfg.Registry.StalePendingAge, a.logger)
}

// exitErr wraps any failure as an abort. Conflicts, budget overruns, and
// validation failures all mean the caller must not proceed.
func exitErr(err error) error {
	return cli.Exit(fmt.Sprintf("❌ %v", err), exitAbort)
}

// confirm asks the user unless --yes was given.
func confirm(c *cli.Context, message string) (bool, error) {
	if c.Bool("yes") {
		return true, nil
	}
	var ok bool
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func deployCommand(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	provider, err := models.ParseProvider(c.String("provider"))
	if err != nil {
		return exitErr(err)
	}
	regions := splitList(c.String("regions"))
	if len(regions) == 0 {
		return cli.Exit("at least one region is required (--regions R[,R...])", exitAbort)
	}
	instanceType := c.String("instance-type")
	if instanceType == "" {
		instanceType = a.cfg.Providers.DefaultInstanceTypes[string(provider)]
	}

	if c.Bool("cost-analysis") {
		var total float64
		for _, region := range regions {
			est := cost.EstimateMonthly(provider, region, instanceType)
			fmt.Printf("💰 %s/%s (%s): $%.4f/hour, $%.2f/month\n",
				provider, region, est.InstanceType, est.Hourly, est.Monthly)
			if !est.KnownType {
				fmt.Printf("   ⚠️  no listed price for %q; estimate uses the cheapest %s type\n",
					instanceType, provider)
				fmt.Printf("   Priced types: %s\n", strings.Join(cost.KnownInstanceTypes(provider), ", "))
			}
			total += est.Monthly
		}
		if len(regions) > 1 {
			fmt.Printf("   Total: $%.2f/month\n", total)
		}
		return nil
	}

	dryRun := c.Bool("dry-run")
	if !dryRun {
		if err := terraform.CheckTerraformInstalled(); err != nil {
			return exitErr(err)
		}
	}

	d := a.deployer()
	ctx := context.Background()

	if !dryRun {
		// Resolve pending records abandoned by earlier runs before gating.
		if promoted, discarded, err := d.SweepStalePending(ctx); err != nil {
			a.logger.Warn("stale pending sweep failed", "error", err)
		} else if promoted+discarded > 0 {
			fmt.Printf("🧹 Resolved %d stale pending record(s) (%d promoted, %d discarded)\n",
				promoted+discarded, promoted, discarded)
		}
	}

	for _, region := range regions {
		req := deploy.Request{
			Provider:     provider,
			Region:       region,
			InstanceType: instanceType,
			ForceNewIP:   c.Bool("force-new-ip"),
			Budget:       c.Float64("budget"),
		}

		plan, err := d.Plan(req)
		if err != nil {
			return exitErr(err)
		}
		if plan.Conflict.Outcome == conflict.Conflict {
			return cli.Exit(fmt.Sprintf("❌ Conflict in %s/%s: %s", provider, region, plan.Conflict.Reason), exitAbort)
		}

		fmt.Printf("💰 %s/%s estimated cost: $%.4f/hour ($%.2f/month)\n",
			provider, region, plan.Cost.Estimate.Hourly, plan.Cost.Estimate.Monthly)
		switch plan.Cost.Outcome {
		case cost.Abort:
			return cli.Exit(fmt.Sprintf("❌ %s", plan.Cost.Reason), exitAbort)
		case cost.Warn:
			if dryRun {
				fmt.Printf("⚠️  %s\n", plan.Cost.Reason)
				break
			}
			ok, err := confirm(c, fmt.Sprintf("⚠️  %s. Deploy anyway?", plan.Cost.Reason))
			if err != nil {
				return exitErr(err)
			}
			if !ok {
				return cli.Exit("Deployment cancelled.", exitWarn)
			}
		}

		if dryRun {
			fmt.Printf("✅ %s/%s would deploy (dry run, nothing provisioned)\n", provider, region)
			continue
		}

		rec, err := d.Execute(ctx, req)
		if err != nil {
			return exitErr(err)
		}

		fmt.Printf("\n✅ Endpoint ready\n")
		fmt.Printf("   ID:        %s\n", rec.ID)
		fmt.Printf("   Public IP: %s\n", rec.PublicIP)
		fmt.Printf("   Region:    %s/%s\n", rec.Provider, rec.Region)
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func destroyCommand(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	targets, err := a.destroyTargets(c)
	if err != nil {
		return exitErr(err)
	}

	d := a.deployer()
	for _, rec := range targets {
		if rec.Status == models.StatusDestroyed {
			fmt.Printf("ℹ️  Deployment %s is already destroyed\n", rec.ID)
			continue
		}

		// A drifted record has no trustworthy workspace to destroy; make the
		// operator reconcile first, or insist with --force.
		if rec.Status == models.StatusDrifted && !c.Bool("force") {
			return exitErr(&models.ReconciliationDriftError{
				Provider: rec.Provider,
				Region:   rec.Region,
				RecordID: rec.ID,
				Detail:   fmt.Sprintf("%s; run `proxygen sync` first or pass --force", rec.DriftReason),
			})
		}

		if !c.Bool("force") {
			ok, err := confirm(c, fmt.Sprintf("Destroy %s (%s/%s, %s)?", rec.ID, rec.Provider, rec.Region, rec.PublicIP))
			if err != nil {
				return exitErr(err)
			}
			if !ok {
				fmt.Println("Destroy cancelled.")
				continue
			}
		}

		if err := d.Destroy(context.Background(), rec.ID); err != nil {
			return exitErr(err)
		}
		fmt.Printf("✅ Deployment %s destroyed\n", rec.ID)
	}
	return nil
}

// destroyTargets resolves --id, or --provider plus --regions, into records.
// Region selection picks every non-destroyed record in that provider/region.
func (a *app) destroyTargets(c *cli.Context) ([]*models.DeploymentRecord, error) {
	if id := c.String("id"); id != "" {
		rec, err := a.store.Get(id)
		if err != nil {
			return nil, err
		}
		return []*models.DeploymentRecord{rec}, nil
	}

	rawProvider := c.String("provider")
	regions := splitList(c.String("regions"))
	if rawProvider == "" || len(regions) == 0 {
		return nil, fmt.Errorf("specify --id, or --provider together with --regions")
	}
	provider, err := models.ParseProvider(rawProvider)
	if err != nil {
		return nil, err
	}

	var targets []*models.DeploymentRecord
	for _, region := range regions {
		records, err := a.store.List(models.RecordFilter{Provider: provider, Region: region})
		if err != nil {
			return nil, err
		}
		found := false
		for _, rec := range records {
			if rec.Status != models.StatusDestroyed {
				targets = append(targets, rec)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("no live deployment found in %s/%s", provider, region)
		}
	}
	return targets, nil
}

func listCommand(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	if c.Bool("cleanup") {
		return a.purgeDestroyed(c)
	}
	if c.Bool("remote") || c.Bool("sync") {
		return a.listRemote(c)
	}

	filter := models.RecordFilter{Region: c.String("region")}
	if p := c.String("provider"); p != "" {
		provider, err := models.ParseProvider(p)
		if err != nil {
			return exitErr(err)
		}
		filter.Provider = provider
	}
	if s := c.String("status"); s != "" {
		filter.Status = models.RecordStatus(s)
	}

	records, err := a.store.List(filter)
	if err != nil {
		return exitErr(err)
	}

	if export := c.String("export"); export != "" {
		format, err := state.ParseExportFormat(export)
		if err != nil {
			return exitErr(err)
		}
		text, err := state.ExportRecords(records, format)
		if err != nil {
			return exitErr(err)
		}
		fmt.Print(text)
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No deployments found.")
		return nil
	}

	detailed := c.Bool("detailed")
	if detailed {
		fmt.Printf("%-45s %-13s %-15s %-11s %-16s %-14s %-10s %s\n",
			"ID", "PROVIDER", "REGION", "STATUS", "PUBLIC IP", "TYPE", "$/MONTH", "AGE")
		fmt.Println(strings.Repeat("-", 135))
	} else {
		fmt.Printf("%-45s %-13s %-15s %-11s %-16s %s\n",
			"ID", "PROVIDER", "REGION", "STATUS", "PUBLIC IP", "AGE")
		fmt.Println(strings.Repeat("-", 110))
	}

	var activeMonthly float64
	active := 0
	for _, rec := range records {
		if !detailed {
			fmt.Printf("%-45s %-13s %-15s %-11s %-16s %s\n",
				rec.ID, rec.Provider, rec.Region, rec.Status, rec.PublicIP, humanAge(rec.CreatedAt))
			continue
		}
		est := cost.EstimateMonthly(rec.Provider, rec.Region, rec.InstanceType)
		fmt.Printf("%-45s %-13s %-15s %-11s %-16s %-14s %-10.2f %s\n",
			rec.ID, rec.Provider, rec.Region, rec.Status, rec.PublicIP,
			rec.InstanceType, est.Monthly, humanAge(rec.CreatedAt))
		if rec.Status == models.StatusActive {
			activeMonthly += est.Monthly
			active++
		}
	}
	if detailed {
		fmt.Printf("\n💰 %d active endpoint(s), estimated $%.2f/month total\n", active, activeMonthly)
	}
	return nil
}

// purgeDestroyed backs `list --cleanup --days N`.
func (a *app) purgeDestroyed(c *cli.Context) error {
	days := c.Int("days")
	ok, err := confirm(c, fmt.Sprintf("Purge destroyed records older than %d days?", days))
	if err != nil {
		return exitErr(err)
	}
	if !ok {
		fmt.Println("Cleanup cancelled.")
		return nil
	}
	purged, err := a.store.Cleanup(context.Background(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return exitErr(err)
	}
	fmt.Printf("🧹 Purged %d destroyed record(s)\n", purged)
	return nil
}

// listRemote backs `list --remote` and `list --sync`. Both query live
// provider state; --sync additionally prints the reconciliation proposals.
func (a *app) listRemote(c *cli.Context) error {
	provider, err := models.ParseProvider(c.String("provider"))
	if err != nil {
		return exitErr(fmt.Errorf("--remote/--sync need --provider: %w", err))
	}
	region := c.String("region")
	if region == "" {
		return cli.Exit("--remote/--sync need --region", exitAbort)
	}

	ctx := context.Background()
	querier, err := cloud.ForProvider(ctx, provider, cloud.WithAWSProfile(a.cfg.Providers.AWSProfile))
	if err != nil {
		return exitErr(err)
	}
	if err := querier.Preflight(ctx); err != nil {
		return exitErr(err)
	}

	instances, err := querier.ListInstances(ctx, region)
	if err != nil {
		return exitErr(err)
	}
	if len(instances) == 0 {
		fmt.Printf("No live %s instances found in %s/%s.\n", cloud.NamePrefix+"*", provider, region)
	} else {
		fmt.Printf("%-40s %-20s %-16s %-12s %s\n", "NAME", "INSTANCE ID", "PUBLIC IP", "STATE", "TYPE")
		fmt.Println(strings.Repeat("-", 100))
		for _, inst := range instances {
			fmt.Printf("%-40s %-20s %-16s %-12s %s\n",
				inst.Name, inst.InstanceID, inst.PublicIP, inst.State, inst.InstanceType)
		}
	}

	if !c.Bool("sync") {
		return nil
	}

	report, err := reconcile.New(a.store, a.logger).Sync(ctx, querier, region)
	if err != nil {
		return exitErr(err)
	}
	if report.Empty() {
		fmt.Println("\n✅ Registry matches live state.")
		return nil
	}
	fmt.Printf("\nProposed registry changes (run `proxygen sync --commit` to apply):\n")
	for _, id := range report.Added {
		fmt.Printf("  + import   %s\n", id)
	}
	for _, id := range report.Removed {
		fmt.Printf("  - retire   %s\n", id)
	}
	for _, id := range report.Drifted {
		fmt.Printf("  ~ drifted  %s\n", id)
	}
	return nil
}

// humanAge returns a compact human-readable duration like:
//
//	"45s", "12m", "1h 5m", "2d 3h"
func humanAge(t time.Time) string {
	d := time.Since(t)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := (int(d.Minutes()) % 60)
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	if h == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, h)
}

func syncCommand(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	provider, err := models.ParseProvider(c.String("provider"))
	if err != nil {
		return exitErr(err)
	}
	region := c.String("region")

	ctx := context.Background()
	querier, err := cloud.ForProvider(ctx, provider, cloud.WithAWSProfile(a.cfg.Providers.AWSProfile))
	if err != nil {
		return exitErr(err)
	}
	if err := querier.Preflight(ctx); err != nil {
		return exitErr(err)
	}

	reconciler := reconcile.New(a.store, a.logger)
	fmt.Printf("🔄 Reconciling %s/%s against live state...\n", provider, region)
	report, err := reconciler.Sync(ctx, querier, region)
	if err != nil {
		return exitErr(err)
	}

	if report.Empty() {
		fmt.Println("✅ Registry matches live state; nothing to do.")
		return nil
	}

	fmt.Printf("\nProposed changes for %s/%s:\n", provider, region)
	for _, id := range report.Added {
		fmt.Printf("  + import   %s\n", id)
	}
	for _, id := range report.Removed {
		fmt.Printf("  - retire   %s\n", id)
	}
	for _, id := range report.Drifted {
		fmt.Printf("  ~ drifted  %s\n", id)
	}

	if c.Bool("dry-run") {
		return nil
	}

	apply := c.Bool("commit")
	if !apply {
		apply, err = confirm(c, "Apply these changes to the registry?")
		if err != nil {
			return exitErr(err)
		}
	}
	if !apply {
		fmt.Println("Changes left as drift annotations; re-run sync to apply later.")
		return nil
	}

	if err := reconciler.Commit(ctx, report); err != nil {
		return exitErr(err)
	}
	fmt.Printf("✅ Applied: %d imported, %d retired\n", len(report.Added), len(report.Removed))
	return nil
}

func cleanupCommand(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	days := c.Int("days")
	ok, err := confirm(c, fmt.Sprintf("Purge destroyed records older than %d days?", days))
	if err != nil {
		return exitErr(err)
	}
	if !ok {
		fmt.Println("Cleanup cancelled.")
		return nil
	}

	purged, err := a.store.Cleanup(context.Background(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return exitErr(err)
	}
	fmt.Printf("🧹 Purged %d destroyed record(s)\n", purged)
	return nil
}

func backupCommand(c *cli.Context) error {
	push := c.Bool("push")
	pull := c.Bool("pull")
	if push == pull {
		return cli.Exit("specify exactly one of --push or --pull", exitAbort)
	}

	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	if a.cfg.Backup.S3Bucket == "" {
		return cli.Exit("backup.s3_bucket is not configured", exitAbort)
	}

	ctx := context.Background()
	snapshots, err := state.NewSnapshotStore(ctx, a.cfg.Backup.S3Bucket, a.cfg.Backup.AWSProfile)
	if err != nil {
		return exitErr(err)
	}

	if push {
		if err := snapshots.Push(ctx, a.cfg.StateDir); err != nil {
			return exitErr(err)
		}
		fmt.Printf("✅ Registry snapshot uploaded to s3://%s\n", a.cfg.Backup.S3Bucket)
		return nil
	}

	if err := snapshots.Pull(ctx, a.cfg.StateDir); err != nil {
		return exitErr(err)
	}
	fmt.Println("✅ Registry restored from the latest snapshot")
	return nil
}

// builder wires the chain builder over the app's stores.
func (a *app) builder() *chain.Builder {
	return chain.NewBuilder(a.store, a.chains, a.cfg.Chains.BaseListenPort, a.cfg.Chains.MaxHops, a.logger)
}

func multihopCreateCommand(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	preset, err := models.ParsePreset(c.String("preset"))
	if err != nil {
		return exitErr(err)
	}

	hops := make([]models.HopRef, 0, len(c.StringSlice("hop")))
	for _, raw := range c.StringSlice("hop") {
		hop, err := models.ParseHopRef(raw)
		if err != nil {
			return exitErr(err)
		}
		hops = append(hops, hop)
	}

	// Without explicit hops, expand the preset over --providers and --regions.
	if len(hops) == 0 {
		providers := make([]models.Provider, 0)
		for _, raw := range splitList(c.String("providers")) {
			provider, err := models.ParseProvider(raw)
			if err != nil {
				return exitErr(err)
			}
			providers = append(providers, provider)
		}
		hops, err = chain.ExpandPreset(preset, providers, splitList(c.String("regions")))
		if err != nil {
			return exitErr(err)
		}
	}

	def := &models.ChainDefinition{
		Name:      c.String("name"),
		Hops:      hops,
		Preset:    preset,
		Status:    models.ChainDraft,
		CreatedAt: time.Now().UTC(),
	}

	decision, err := a.builder().Validate(def)
	if err != nil {
		return exitErr(err)
	}
	if decision.Outcome == chain.Invalid {
		return cli.Exit(fmt.Sprintf("❌ Chain rejected: %s", decision.Reason), exitAbort)
	}
	def.Status = models.ChainValidated

	if err := a.chains.Create(context.Background(), def); err != nil {
		return exitErr(err)
	}
	fmt.Printf("✅ Chain %s created (%d hops, preset %s)\n", def.Name, len(def.Hops), def.Preset)
	return nil
}

// chainNameArg accepts the chain name as --name or as the sole positional
// argument.
func chainNameArg(c *cli.Context) (string, error) {
	if name := c.String("name"); name != "" {
		return name, nil
	}
	if c.Args().Len() == 1 {
		return c.Args().First(), nil
	}
	return "", fmt.Errorf("usage: proxygen multihop %s --name <chain-name>", c.Command.Name)
}

func multihopValidateCommand(c *cli.Context) error {
	name, err := chainNameArg(c)
	if err != nil {
		return cli.Exit(err.Error(), exitAbort)
	}

	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	def, err := a.chains.Get(name)
	if err != nil {
		return exitErr(err)
	}

	decision, err := a.builder().Validate(def)
	if err != nil {
		return exitErr(err)
	}
	if decision.Outcome == chain.Invalid {
		return cli.Exit(fmt.Sprintf("❌ Chain %s is invalid: %s", def.Name, decision.Reason), exitAbort)
	}
	fmt.Printf("✅ Chain %s is valid\n", def.Name)
	return nil
}

func multihopShowCommand(c *cli.Context) error {
	name, err := chainNameArg(c)
	if err != nil {
		return cli.Exit(err.Error(), exitAbort)
	}

	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	def, err := a.chains.Get(name)
	if err != nil {
		return exitErr(err)
	}

	plan, err := a.builder().Build(context.Background(), def)
	if err != nil {
		return exitErr(err)
	}

	if c.String("output") == "json" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return exitErr(err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Chain %s (%s, %d hops)\n", plan.Name, plan.Preset, len(plan.Hops))
	fmt.Println(strings.Repeat("=", 80))
	for _, hop := range plan.Hops {
		fmt.Printf("[%d] %-6s %s/%s\n", hop.Index, hop.Role, hop.Record.Provider, hop.Record.Region)
		fmt.Printf("    public %s  port %d  subnet %s  gateway %s\n",
			hop.Record.PublicIP, hop.ListenPort, hop.Subnet, hop.GatewayIP)
		if hop.ForwardTo != "" {
			fmt.Printf("    forwards to %s\n", hop.ForwardTo)
		}
	}
	fmt.Printf("\nTraffic path: client -> %s -> ... -> %s -> internet\n",
		plan.EntryHop().Record.PublicIP, plan.ExitHop().Record.PublicIP)
	return nil
}

func multihopListCommand(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	defs, err := a.chains.List()
	if err != nil {
		return exitErr(err)
	}
	if len(defs) == 0 {
		fmt.Println("No chains defined.")
		return nil
	}

	fmt.Printf("%-20s %-12s %-10s %-6s %s\n", "NAME", "PRESET", "STATUS", "HOPS", "PATH")
	fmt.Println(strings.Repeat("-", 90))
	for _, def := range defs {
		path := make([]string, len(def.Hops))
		for i, hop := range def.Hops {
			path[i] = hop.String()
		}
		fmt.Printf("%-20s %-12s %-10s %-6d %s\n",
			def.Name, def.Preset, def.Status, len(def.Hops), strings.Join(path, " -> "))
	}
	return nil
}

func multihopTestCommand(c *cli.Context) error {
	name, err := chainNameArg(c)
	if err != nil {
		return cli.Exit(err.Error(), exitAbort)
	}

	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	def, err := a.chains.Get(name)
	if err != nil {
		return exitErr(err)
	}
	plan, err := a.builder().Build(context.Background(), def)
	if err != nil {
		return exitErr(err)
	}

	fmt.Printf("🔍 Probing %d hop(s) of chain %s...\n", len(plan.Hops), plan.Name)
	failures := 0
	for _, hop := range plan.Hops {
		// The tunnel port is UDP and gives no connect-time signal, so SSH
		// reachability stands in as the liveness probe.
		addr := net.JoinHostPort(hop.Record.PublicIP, "22")
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			fmt.Printf("  ❌ hop %d (%s): %v\n", hop.Index, addr, err)
			failures++
			continue
		}
		conn.Close()
		fmt.Printf("  ✅ hop %d (%s): reachable\n", hop.Index, addr)
	}
	if failures > 0 {
		return cli.Exit(fmt.Sprintf("❌ %d of %d hops unreachable", failures, len(plan.Hops)), exitAbort)
	}
	fmt.Println("✅ All hops reachable")
	return nil
}

func multihopTeardownCommand(c *cli.Context) error {
	name, err := chainNameArg(c)
	if err != nil {
		return cli.Exit(err.Error(), exitAbort)
	}

	a, err := newApp(c)
	if err != nil {
		return exitErr(err)
	}
	defer a.close()

	if _, err := a.chains.Get(name); err != nil {
		return exitErr(err)
	}

	ok, err := confirm(c, fmt.Sprintf("Tear down chain %s? Endpoint deployments are kept.", name))
	if err != nil {
		return exitErr(err)
	}
	if !ok {
		fmt.Println("Teardown cancelled.")
		return nil
	}

	if err := a.builder().Teardown(context.Background(), name); err != nil {
		return exitErr(err)
	}
	fmt.Printf("✅ Chain %s torn down\n", name)
	return nil
}
