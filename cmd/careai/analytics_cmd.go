package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"careai/internal/domain"
	"careai/internal/infra/logger"
	"careai/internal/usecase/analytics"
	"careai/internal/usecase/care"
)

type filterFlags struct {
	gameType string
	period   string
	since    string
	until    string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.gameType, "game-type", "", "only analyse this game type")
	cmd.Flags().StringVar(&f.period, "period", "", `time window: "7d", "30d", "90d" or "all"`)
	cmd.Flags().StringVar(&f.since, "since", "", "RFC 3339 lower bound (overrides --period)")
	cmd.Flags().StringVar(&f.until, "until", "", "RFC 3339 upper bound")
}

func (f *filterFlags) filter() (domain.AnalyticsFilter, error) {
	out := domain.AnalyticsFilter{GameType: f.gameType, Period: f.period}
	var err error
	if f.since != "" {
		if out.Since, err = time.Parse(time.RFC3339, f.since); err != nil {
			return out, fmt.Errorf("--since: %w", err)
		}
	}
	if f.until != "" {
		if out.Until, err = time.Parse(time.RFC3339, f.until); err != nil {
			return out, fmt.Errorf("--until: %w", err)
		}
	}
	return out, nil
}

func (a *app) engine() *analytics.Engine {
	return analytics.NewEngine(a.cfg.Analytics)
}

func newAnalyticsCmd(a *app) *cobra.Command {
	var (
		ff        filterFlags
		narrative bool
		provider  string
	)
	cmd := &cobra.Command{
		Use:   "analytics <samples.json|->",
		Short: "Aggregate game performance with trend, risk and an optional narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := readSamples(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			filter, err := ff.filter()
			if err != nil {
				return err
			}

			opts := []analytics.Option{analytics.WithLogger(logger.Component(a.log, "analytics"))}
			if narrative {
				agent, err := a.agent(provider)
				if err != nil {
					return err
				}
				opts = append(opts, analytics.WithNarrator(care.NewGameAgent(agent,
					care.WithLogger(logger.Component(a.log, "game")))))
			}

			orch := analytics.NewOrchestrator(a.engine(), opts...)
			return printJSON(cmd.OutOrStdout(), orch.GetAnalytics(cmd.Context(), samples, filter, narrative))
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&narrative, "narrative", false, "ask the model for strengths and recommendations")
	cmd.Flags().StringVar(&provider, "provider", "", "provider name for the narrative")
	return cmd
}

func newTrendCmd(a *app) *cobra.Command {
	var (
		ff       filterFlags
		features []string
	)
	cmd := &cobra.Command{
		Use:   "trend <samples.json|->",
		Short: "Classify the performance trend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics := make([]domain.Metric, 0, len(features))
			for _, f := range features {
				m, err := domain.ParseMetric(f)
				if err != nil {
					return err
				}
				metrics = append(metrics, m)
			}
			samples, err := a.filtered(cmd, args[0], ff)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.engine().DetectTrend(samples, metrics...))
		},
	}
	ff.register(cmd)
	cmd.Flags().StringSliceVar(&features, "feature", nil, "metrics to analyse (score, durationSeconds, errorCount)")
	return cmd
}

func newRiskCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "risk <samples.json|->",
		Short: "Estimate cognitive decline risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := a.filtered(cmd, args[0], ff)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.engine().PredictDecline(samples))
		},
	}
	ff.register(cmd)
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "report <samples.json|->",
		Short: "Generate a rule-based cognitive report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := readSamples(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			orch := analytics.NewOrchestrator(a.engine(), analytics.WithLogger(logger.Component(a.log, "analytics")))
			return printJSON(cmd.OutOrStdout(), orch.Report(cmd.Context(), samples, filter))
		},
	}
	ff.register(cmd)
	return cmd
}

// filtered reads samples and applies the filter flags. Unlike the
// orchestrator, an invalid period is an error here.
func (a *app) filtered(cmd *cobra.Command, path string, ff filterFlags) ([]domain.PerformanceSample, error) {
	samples, err := readSamples(cmd.InOrStdin(), path)
	if err != nil {
		return nil, err
	}
	filter, err := ff.filter()
	if err != nil {
		return nil, err
	}
	return analytics.Apply(samples, filter, time.Now())
}
