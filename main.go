package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/shazow/wifiportal/internal/config"
	"github.com/shazow/wifiportal/internal/creds"
	"github.com/shazow/wifiportal/internal/kv"
	"github.com/shazow/wifiportal/internal/log"
)

var (
	// Version is the version of the application. It is set at build time.
	Version string = "dev"
)

func main() {
	cfg := config.Default()
	cfg.Backend = defaultBackend

	var (
		rootFlagSet = flag.NewFlagSet("wifiportal", flag.ExitOnError)
		_           = rootFlagSet.String("config", "", "path to a TOML config file (env: WIFIPORTAL_CONFIG)")
		version     = rootFlagSet.Bool("version", false, "display version")
	)
	cfg.RegisterFlags(rootFlagSet)

	// Set up after flags are parsed, before any command runs.
	var logger *slog.Logger
	var logCloser io.Closer

	scanFlagSet := flag.NewFlagSet("scan", flag.ExitOnError)
	scanJSON := scanFlagSet.Bool("json", false, "output in JSON format")
	scanSort := scanFlagSet.Bool("sort", false, "sort by signal strength instead of radio order")
	scanCmd := &ffcli.Command{
		Name:       "scan",
		ShortUsage: "wifiportal scan [-json] [-sort]",
		ShortHelp:  "Scan for networks",
		FlagSet:    scanFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			r, err := GetRadio(logger, cfg)
			if err != nil {
				return err
			}
			return runScan(ctx, os.Stdout, *scanJSON, *scanSort, logger, r, cfg.ScanPoll)
		},
	}

	credsFlagSet := flag.NewFlagSet("creds", flag.ExitOnError)
	credsShowPass := credsFlagSet.Bool("show-pass", false, "also print the passphrase")
	credsCmd := &ffcli.Command{
		Name:       "creds",
		ShortUsage: "wifiportal creds [-show-pass]",
		ShortHelp:  "Show the saved network",
		FlagSet:    credsFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			db, err := kv.OpenSQLite(logger, cfg.StatePath)
			if err != nil {
				return err
			}
			defer db.Close()
			return runCreds(ctx, os.Stdout, *credsShowPass, creds.New(logger, db, cfg.Namespace))
		},
	}

	qrCmd := &ffcli.Command{
		Name:      "qr",
		ShortHelp: "Print a QR code for joining the provisioning access point",
		Exec: func(ctx context.Context, args []string) error {
			code, err := GenerateWifiQRCode(cfg.APSSID, cfg.APPass, cfg.APOpen())
			if err != nil {
				return fmt.Errorf("failed to generate QR code: %w", err)
			}
			fmt.Print(code)
			return nil
		},
	}

	serviceCmd := &ffcli.Command{
		Name:       "service",
		ShortUsage: "wifiportal [flags] service install|uninstall|start|stop|restart",
		ShortHelp:  "Manage the system service",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("service requires exactly one action")
			}
			return controlService(newDaemon(logger, cfg), args[0], serviceArgs(os.Args[1:]))
		},
	}

	root := &ffcli.Command{
		ShortUsage: "wifiportal [flags] <subcommand> [args...]",
		FlagSet:    rootFlagSet,
		Options: []ff.Option{
			ff.WithEnvVarPrefix("WIFIPORTAL"),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(config.TOMLParser),
		},
		Subcommands: []*ffcli.Command{scanCmd, credsCmd, qrCmd, serviceCmd},
		Exec: func(ctx context.Context, args []string) error {
			return runService(newDaemon(logger, cfg), os.Args[1:])
		},
	}

	if err := root.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if *version {
		fmt.Println(Version)
		os.Exit(0)
	}

	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser = log.Init(log.Options{Level: cfg.Level(), File: cfg.LogFile})

	err := root.Run(context.Background())
	logCloser.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
