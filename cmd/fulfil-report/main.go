// README: Operator report; prints fulfilment staff workload and delivery agent performance tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"fulfil/internal/config"
	"fulfil/internal/infra"
	"fulfil/internal/modules/delivery"
	"fulfil/internal/modules/staff"
)

type Options struct {
	DSN     string
	Section string
	Timeout time.Duration
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	opts := parseOptions(cfg)

	logger, err := infra.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	db, err := infra.NewDB(ctx, opts.DSN)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	if err := report(ctx, os.Stdout, db, opts.Section, logger); err != nil {
		logger.Fatal("report failed", zap.Error(err))
	}
}

func parseOptions(cfg config.Config) Options {
	var opts Options
	flag.StringVar(&opts.DSN, "dsn", cfg.DB.DSN, "Postgres DSN")
	flag.StringVar(&opts.Section, "section", "all", "workload, performance or all")
	flag.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Total timeout")
	flag.Parse()
	opts.Section = strings.ToLower(strings.TrimSpace(opts.Section))
	return opts
}

func report(ctx context.Context, w io.Writer, db *pgxpool.Pool, section string, logger *zap.Logger) error {
	if section == "all" || section == "workload" {
		rows, err := staff.NewService(staff.NewStore(db), nil, logger).Workload(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "== Fulfilment staff workload ==")
		if err := renderWorkload(w, rows); err != nil {
			return err
		}
	}
	if section == "all" || section == "performance" {
		perf, err := delivery.NewService(delivery.NewStore(db), nil, nil, 0, logger).AllPerformance(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "== Delivery agent performance ==")
		if err := renderPerformance(w, perf); err != nil {
			return err
		}
	}
	return nil
}

func renderWorkload(w io.Writer, rows []staff.Workload) error {
	table := tablewriter.NewWriter(w)
	table.Header("Staff", "Name", "Warehouse", "Area", "Assigned", "On break")
	for _, r := range rows {
		warehouse := r.WarehouseName
		if warehouse == "" {
			warehouse = "-"
		}
		if err := table.Append(
			r.StaffID.String(),
			r.FullName,
			warehouse,
			r.AssignedArea,
			fmt.Sprintf("%d", r.AssignedOrdersCount),
			yesNo(r.OnBreak),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderPerformance(w io.Writer, perf []delivery.Performance) error {
	table := tablewriter.NewWriter(w)
	table.Header("Agent", "Total", "Completed", "On time", "On-time %")
	for _, p := range perf {
		if err := table.Append(
			p.AgentID.String(),
			fmt.Sprintf("%d", p.TotalDeliveries),
			fmt.Sprintf("%d", p.CompletedDeliveries),
			fmt.Sprintf("%d", p.OnTimeDeliveries),
			fmt.Sprintf("%.1f", p.OnTimePercentage),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
