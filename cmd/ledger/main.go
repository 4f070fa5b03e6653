package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ledger/internal"
	pkgconfig "github.com/starford/ledger/pkg/config"
)

func loadConfig(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), cmd.IsSet("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := os.Create(cmd.String("out"))
	if err != nil {
		return err
	}
	if err := internal.Export(ctx, cmd.String("store"), out, append(opts, internal.WithLogOutput(os.Stderr))...); err != nil {
		out.Close()
		os.Remove(out.Name())
		return err
	}
	return out.Close()
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in, err := os.Open(cmd.String("in"))
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := internal.Import(ctx, cmd.String("store"), in, append(opts, internal.WithLogOutput(os.Stderr))...)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(info)
}

func main() {
	cmd := &cli.Command{
		Name:   "ledger",
		Usage:  "Authenticated record ledger with fixed-capacity stores, signed writes and full-text search",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve read-only MCP tools on stdio",
				Action: runMCP,
			},
			{
				Name:   "export",
				Usage:  "Write a compressed snapshot of a store",
				Action: runExport,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "store", Usage: "Store ID", Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Snapshot file", Required: true},
				},
			},
			{
				Name:   "import",
				Usage:  "Restore a store from a snapshot",
				Action: runImport,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "Snapshot file", Required: true},
					&cli.StringFlag{Name: "store", Usage: "Store ID (defaults to the ID in the snapshot)"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
