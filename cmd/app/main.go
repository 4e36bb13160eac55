// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/vault/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "vault",
		Usage:   "Multi-tenant secrets management service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "generate-master-key",
				Usage: "Generate a new 32-byte master key for envelope encryption",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kms-key-uri",
						Aliases: []string{"k"},
						Value:   "",
						Usage:   "KMS key URI to wrap the key (e.g., gcpkms://..., awskms://...); omit for a plain dev key",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunGenerateMasterKey(ctx, cmd.String("kms-key-uri"))
				},
			},
			{
				Name:  "generate-key-shares",
				Usage: "Generate a master key split into Shamir key shares",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "total-shares",
						Aliases: []string{"n"},
						Value:   5,
						Usage:   "Number of shares to generate (max 255)",
					},
					&cli.IntFlag{
						Name:    "threshold",
						Aliases: []string{"m"},
						Value:   3,
						Usage:   "Number of shares required to unseal",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunGenerateKeyShares(cmd.Int("total-shares"), cmd.Int("threshold"))
				},
			},
			{
				Name:  "create-policy",
				Usage: "Create an access policy (bootstrap: fresh installations deny everything)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "team-id",
						Usage:    "Team UUID owning the policy",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Policy name, unique per team",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "path-pattern",
						Usage:    "Path pattern, segments may be '*' (e.g., /services/*)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "effect",
						Value: "ALLOW",
						Usage: "ALLOW or DENY",
					},
					&cli.StringSliceFlag{
						Name:     "permission",
						Aliases:  []string{"p"},
						Usage:    "Permission to grant (repeatable): read, write, list, delete, rotate, encrypt, decrypt",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "bind-user",
						Usage: "User UUID to bind the policy to (optional)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreatePolicy(ctx, commands.CreatePolicyOptions{
						TeamID:      cmd.String("team-id"),
						Name:        cmd.String("name"),
						PathPattern: cmd.String("path-pattern"),
						Effect:      cmd.String("effect"),
						Permissions: cmd.StringSlice("permission"),
						BindUserID:  cmd.String("bind-user"),
					})
				},
			},
			{
				Name:  "clean-audit-entries",
				Usage: "Delete audit entries older than specified days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "days",
						Aliases: []string{"d"},
						Value:   0,
						Usage:   "Delete audit entries older than this many days (defaults to AUDIT_RETENTION_DAYS)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCleanAuditEntries(ctx, cmd.Int("days"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
