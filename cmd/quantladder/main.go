package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skalibog/quantladder/internal/analysis/liquidation"
	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/internal/httpapi"
	"github.com/skalibog/quantladder/internal/ui"
	"github.com/skalibog/quantladder/pkg/logger"
	"github.com/skalibog/quantladder/pkg/models"
)

// defaultUILogFile журнал терминального UI, если log.file не задан
const defaultUILogFile = "quantladder.json.log"

var (
	configPath string
	cfg        *config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "quantladder",
		Short:         "Quant summary, trade plans and liquidation ladder for Binance spot pairs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "путь к файлу конфигурации")

	root.AddCommand(reportCmd(), ladderCmd(), serveCmd(), uiCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

// setup загружает конфигурацию и инициализирует логгер
func setup(opts logger.Options) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	if opts.Level == "" {
		opts.Level = cfg.Log.Level
	}
	if opts.File == "" {
		opts.File = cfg.Log.File
	}
	if err := logger.Init(opts); err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	logger.Debug("Конфигурация загружена", zap.String("path", configPath))
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reportCmd() *cobra.Command {
	var (
		symbol string
		equity float64
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the quant summary, trade plans and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(logger.Options{}); err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if symbol == "" {
				symbol = cfg.Analysis.Symbol
			}
			if equity == 0 {
				equity = cfg.Analysis.AccountEquity
			}

			result, err := app.analyzer.Analyze(ctx, symbol, equity)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "торговая пара, например BTCUSDT")
	cmd.Flags().Float64Var(&equity, "equity", 0, "размер счета в USDT")
	return cmd
}

func ladderCmd() *cobra.Command {
	var (
		symbol    string
		timeframe string
		rangePct  float64
		stepPct   float64
	)
	cmd := &cobra.Command{
		Use:   "ladder",
		Short: "Model the liquidation density ladder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(logger.Options{}); err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			opts := app.analyzer.LiquidationOptions()
			if timeframe != "" {
				opts.Timeframe = models.Timeframe(timeframe)
			}
			if rangePct > 0 {
				opts.RangePct = rangePct
			}
			if stepPct > 0 {
				opts.StepPct = stepPct
			}
			if symbol == "" {
				symbol = cfg.Analysis.Symbol
			}

			ladder, err := app.analyzer.Liquidation(ctx, symbol, opts.Timeframe, liquidation.Options{
				RangePct: opts.RangePct,
				StepPct:  opts.StepPct,
			})
			if err != nil {
				return err
			}
			return printJSON(ladder)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "торговая пара, например BTCUSDT")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "таймфрейм: 4h, 1d или 1w")
	cmd.Flags().Float64Var(&rangePct, "range", 0, "диапазон лестницы в долях цены")
	cmd.Flags().Float64Var(&stepPct, "step", 0, "шаг лестницы в долях цены")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(logger.Options{}); err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			httpCfg := cfg.HTTP
			if addr != "" {
				httpCfg.Addr = addr
			}
			return httpapi.NewServer(httpCfg, app.analyzer).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "адрес HTTP сервера, по умолчанию из конфигурации")
	return cmd
}

func uiCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Interactive liquidation ladder in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// консоль занята интерфейсом, пишем только в файл
			if err := setup(logger.Options{Quiet: true}); err != nil {
				return err
			}
			defer logger.Sync()

			logFile := cfg.Log.File
			if logFile == "" {
				logFile = defaultUILogFile
				if err := logger.Init(logger.Options{Level: cfg.Log.Level, File: logFile, Quiet: true}); err != nil {
					return fmt.Errorf("ошибка инициализации логгера: %w", err)
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if symbol == "" {
				symbol = cfg.Analysis.Symbol
			}
			return ui.NewTermUI(ctx, cfg.UI, app.analyzer, symbol, logFile).Start()
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "торговая пара, например BTCUSDT")
	return cmd
}
