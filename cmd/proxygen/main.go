package main

import (
	"fmt"
	"os"

	"github.com/hemantobora/proxygen/internal/config"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "proxygen",
		Usage: "Deploy and manage personal VPN proxy endpoints across cloud providers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the proxygen config file",
				Value: config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "AWS credential profile name (e.g., dev, prod)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "deploy",
				Usage: "Provision a new proxy endpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "provider",
						Usage:    "Cloud provider (aws, azure, digitalocean, hetzner)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "regions",
						Usage:    "Comma-separated provider regions (e.g., us-east-1,eu-west-1)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "instance-type",
						Usage: "Instance type (defaults to the provider's cheapest listed type)",
					},
					&cli.Float64Flag{
						Name:  "budget",
						Usage: "Hard monthly budget in USD; deployment aborts if the estimate exceeds it",
					},
					&cli.BoolFlag{
						Name:  "force-new-ip",
						Usage: "Allow a second endpoint in a region that already has one",
					},
					&cli.BoolFlag{
						Name:  "cost-analysis",
						Usage: "Print cost estimates and exit without deploying",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Run the conflict and cost gates without provisioning anything",
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Skip confirmation prompts",
					},
				},
				Action: deployCommand,
			},
			{
				Name:  "destroy",
				Usage: "Tear down endpoints (records are kept as destroyed)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Deployment ID to destroy",
					},
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Destroy by provider and regions instead of by ID",
					},
					&cli.StringFlag{
						Name:  "regions",
						Usage: "Comma-separated regions whose live deployments should be destroyed",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Skip confirmation and allow destroying drifted records",
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Skip confirmation prompts",
					},
				},
				Action: destroyCommand,
			},
			{
				Name:  "list",
				Usage: "List deployment records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Filter by provider",
					},
					&cli.StringFlag{
						Name:  "region",
						Usage: "Filter by region",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (pending, active, destroying, destroyed, drifted)",
					},
					&cli.BoolFlag{
						Name:  "detailed",
						Usage: "Include instance types, per-record cost estimates, and a cost summary",
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: "Export records instead of the table (json, csv, yaml)",
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Query live provider state (needs --provider and --region)",
					},
					&cli.BoolFlag{
						Name:  "sync",
						Usage: "Like --remote, plus the proposed registry changes",
					},
					&cli.BoolFlag{
						Name:  "cleanup",
						Usage: "Purge destroyed records older than --days",
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "Retention window for --cleanup",
						Value: 30,
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Skip confirmation prompts",
					},
				},
				Action: listCommand,
			},
			{
				Name:  "sync",
				Usage: "Reconcile the registry against live provider state",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "provider",
						Usage:    "Cloud provider to reconcile",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "region",
						Usage:    "Region to reconcile",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "commit",
						Usage: "Apply the proposed changes without prompting",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report proposed changes and exit without applying",
					},
				},
				Action: syncCommand,
			},
			{
				Name:  "cleanup",
				Usage: "Purge destroyed records older than a retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Purge destroyed records older than this many days",
						Value: 30,
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Skip confirmation prompts",
					},
				},
				Action: cleanupCommand,
			},
			{
				Name:  "backup",
				Usage: "Snapshot the registry to S3, or restore it",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "push",
						Usage: "Upload the current registry to the snapshot bucket",
					},
					&cli.BoolFlag{
						Name:  "pull",
						Usage: "Restore the registry from the latest snapshot",
					},
				},
				Action: backupCommand,
			},
			{
				Name:  "multihop",
				Usage: "Build and manage multi-hop proxy chains",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Define a new chain",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "name",
								Usage:    "Chain name",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "preset",
								Usage: "Chain preset (standard, paranoid, performance, balanced, custom)",
								Value: "standard",
							},
							&cli.StringSliceFlag{
								Name:  "hop",
								Usage: "Hop as provider/region, repeatable and ordered (e.g., --hop aws/us-east-1 --hop hetzner/fsn1)",
							},
							&cli.StringFlag{
								Name:  "providers",
								Usage: "Comma-separated providers to expand the preset over (when --hop is not given)",
							},
							&cli.StringFlag{
								Name:  "regions",
								Usage: "Comma-separated regions to expand the preset over (when --hop is not given)",
							},
						},
						Action: multihopCreateCommand,
					},
					{
						Name:      "validate",
						Usage:     "Validate a chain against its preset policy and the registry",
						ArgsUsage: "[chain-name]",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Chain name"},
						},
						Action: multihopValidateCommand,
					},
					{
						Name:      "show",
						Usage:     "Build and display the routed plan for a chain",
						ArgsUsage: "[chain-name]",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Chain name"},
							&cli.StringFlag{
								Name:  "output",
								Usage: "Output format (table, json)",
								Value: "table",
							},
						},
						Action: multihopShowCommand,
					},
					{
						Name:   "list",
						Usage:  "List chain definitions",
						Action: multihopListCommand,
					},
					{
						Name:      "test",
						Usage:     "Probe each hop's tunnel endpoint for reachability",
						ArgsUsage: "[chain-name]",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Chain name"},
						},
						Action: multihopTestCommand,
					},
					{
						Name:      "teardown",
						Usage:     "Release a chain's addressing and mark it torn down",
						ArgsUsage: "[chain-name]",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Chain name"},
							&cli.BoolFlag{
								Name:  "yes",
								Usage: "Skip confirmation prompts",
							},
						},
						Action: multihopTeardownCommand,
					},
				},
			},
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
