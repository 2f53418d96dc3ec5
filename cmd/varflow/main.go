// varflow — запуск конвейеров variant-load и accession из командной строки.
//
// Использование:
//
//	varflow [--json] [--parallel N] [--record] <command> [args]
//
// Команды:
//
//	load       Выполнить variant-load
//	accession  Выполнить accession
//	plan       Показать граф без выполнения
//	classify   Классифицировать строки таблицы метаданных
//	submit     Поставить запуск в очередь демона
//	runs       История runs из PostgreSQL
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/varflow/internal/cli"
	"github.com/shaiso/varflow/internal/mq"
	"github.com/shaiso/varflow/internal/pipeline"
	"github.com/shaiso/varflow/internal/repo"
	"github.com/shaiso/varflow/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool
	var parallel int
	var record bool

	logger := telemetry.SetupCLILogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:           "varflow",
		Short:         "varflow — genomic variant pipeline runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().IntVar(&parallel, "parallel", 0, "Maximum concurrently running nodes (default from params file, then 4)")
	rootCmd.PersistentFlags().BoolVar(&record, "record", false, "Record runs and tasks in PostgreSQL (DB_URL)")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	// Пул открывается только для --record и команды runs
	var closers []func()
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	serviceFn := func() *pipeline.Service {
		cfg := pipeline.Config{Parallel: parallel, Logger: logger}
		if record {
			pool, err := repo.NewPool(ctx, repo.DSNFromEnv())
			if err != nil {
				logger.Warn("database not available, runs will not be recorded", "error", err)
			} else if err := repo.EnsureSchema(ctx, pool); err != nil {
				logger.Warn("failed to ensure schema, runs will not be recorded", "error", err)
				pool.Close()
			} else {
				closers = append(closers, pool.Close)
				runRepo := repo.NewRunRepo(pool)
				cfg.RunStore = runRepo
				cfg.Runs = runRepo
				cfg.TaskStore = repo.NewTaskRepo(pool)
			}
		}
		return pipeline.New(cfg)
	}

	requesterFn := func(ctx context.Context) (cli.RunRequester, func(), error) {
		conn, err := mq.NewConnection(mq.URLFromEnv(), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := mq.SetupTopology(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return mq.NewPublisher(conn, logger), func() { conn.Close() }, nil
	}

	historyFn := func(ctx context.Context) (cli.RunHistory, func(), error) {
		pool, err := repo.NewPool(ctx, repo.DSNFromEnv())
		if err != nil {
			return nil, nil, err
		}
		return cli.History{Runs: repo.NewRunRepo(pool), Tasks: repo.NewTaskRepo(pool)}, pool.Close, nil
	}

	rootCmd.AddCommand(
		cli.NewLoadCmd(serviceFn, outputFn),
		cli.NewAccessionCmd(serviceFn, outputFn),
		cli.NewPlanCmd(serviceFn, outputFn),
		cli.NewClassifyCmd(outputFn),
		cli.NewSubmitCmd(requesterFn, outputFn),
		cli.NewRunsCmd(historyFn, outputFn),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, c := range closers {
			c()
		}
		os.Exit(1)
	}
}
