package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"careai/internal/adapter/llm"
	"careai/internal/domain"
	"careai/internal/infra/config"
	"careai/internal/infra/logger"
	"careai/internal/infra/tracer"
)

// app carries the state shared by subcommands. Setup runs once per
// invocation in the root's PersistentPreRunE.
type app struct {
	cfgPath  string
	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
	shutdown func(context.Context) error
	registry *llm.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "careai",
		Short: "Cognitive care analytics and LLM-backed care agents",
		Long: `careai analyses cognitive game performance (trend, decline risk, reports)
and drives LLM-backed game, therapy and caregiver agents.

Providers are taken from the config file and from OPENAI_API_KEY,
ANTHROPIC_API_KEY, GEMINI_API_KEY and LOCAL_LLM_API_URL.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", defaultConfigPath(), "config file path")

	root.AddCommand(
		newAnalyticsCmd(a),
		newTrendCmd(a),
		newRiskCmd(a),
		newReportCmd(a),
		newChatCmd(a),
		newModelsCmd(a),
		newExerciseCmd(a),
		newEvaluateCmd(a),
		newSoundsCmd(a),
		newMeditationCmd(a),
		newProgressCmd(a),
		newDailyPlanCmd(a),
		newDoctorCmd(a),
		newVersionCmd(),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("CAREAI_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// loadDotenv reads .env when present. Existing environment variables win.
func loadDotenv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := loadDotenv(); err != nil {
		return err
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	a.cfg = cfg

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log, a.closeLog = log, closeLog
	slog.SetDefault(log)

	shutdown, err := tracer.Setup(cmd.Context(), cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(context.WithoutCancel(cmd.Context())))
	}
	if a.closeLog != nil {
		errs = append(errs, a.closeLog())
	}
	return errors.Join(errs...)
}

// llm builds the provider registry on first use so commands that never call
// a model work without any provider configured.
func (a *app) llm() (*llm.Registry, error) {
	if a.registry != nil {
		return a.registry, nil
	}
	reg, err := initLLM(a.cfg, logger.Component(a.log, "llm"))
	if err != nil {
		return nil, err
	}
	a.registry = reg
	return reg, nil
}
