// Command dbtool runs maintenance tasks against the storefront database.
//
// Usage:
//
//	dbtool [-config path] init    create missing tables and columns, seed empty tables
//	dbtool [-config path] seed    load the seed rows into empty tables
//	dbtool [-config path] reset   drop everything and start over (asks first)
//	dbtool [-config path] stats   print the row count of every table
//
// It reads the same configuration as the server, so it always opens the same
// database file.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/config"
	"github.com/sakif/vinyl-storefront/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	yes := flag.Bool("yes", false, "skip the confirmation prompt for reset")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] init|seed|reset|stats\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dbtool:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := sqlite.New(cfg.Store(), auth.NewPasswordService(cfg.Auth.BcryptCost), logger)
	defer db.Close()

	if err := run(ctx, db, flag.Arg(0), *yes, cfg.Store().DSN()); err != nil {
		logger.Error("dbtool failed", slog.String("command", flag.Arg(0)), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, db *sqlite.DB, command string, yes bool, dsn string) error {
	switch command {
	case "init":
		if err := db.Initialize(ctx); err != nil {
			return err
		}
		fmt.Println("database ready:", dsn)
		return nil

	case "seed":
		if err := db.Initialize(ctx); err != nil {
			return err
		}
		return db.Seed(ctx)

	case "reset":
		if !yes && !confirm(fmt.Sprintf("This deletes every user, vinyl and order in %s. Continue? [y/N] ", dsn)) {
			fmt.Println("aborted")
			return nil
		}
		return db.Reset(ctx)

	case "stats":
		if err := db.Initialize(ctx); err != nil {
			return err
		}
		counts, err := db.TableCounts(ctx)
		if err != nil {
			return err
		}
		printCounts(counts)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printCounts(counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
	}
	w.Flush()
}
