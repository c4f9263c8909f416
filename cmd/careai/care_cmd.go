package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"careai/internal/domain"
	"careai/internal/infra/logger"
	"careai/internal/usecase/care"
	"careai/internal/usecase/extract"
)

// careOutput pairs an agent result with how it was extracted.
type careOutput struct {
	Result  any             `json:"result"`
	Outcome extract.Outcome `json:"outcome"`
}

func (a *app) gameAgent(provider string) (*care.GameAgent, error) {
	agent, err := a.agent(provider)
	if err != nil {
		return nil, err
	}
	return care.NewGameAgent(agent, care.WithLogger(logger.Component(a.log, "game"))), nil
}

func (a *app) therapyAgent(provider string) (*care.TherapyAgent, error) {
	agent, err := a.agent(provider)
	if err != nil {
		return nil, err
	}
	return care.NewTherapyAgent(agent, care.WithLogger(logger.Component(a.log, "therapy"))), nil
}

func (a *app) caregiverAgent(provider string) (*care.CaregiverAgent, error) {
	agent, err := a.agent(provider)
	if err != nil {
		return nil, err
	}
	return care.NewCaregiverAgent(agent, care.WithLogger(logger.Component(a.log, "caregiver"))), nil
}

func newExerciseCmd(a *app) *cobra.Command {
	var (
		provider, gameType, difficulty, profilePath string
	)
	cmd := &cobra.Command{
		Use:   "exercise",
		Short: "Generate a cognitive exercise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var profile *domain.UserProfile
			if profilePath != "" {
				profile = &domain.UserProfile{}
				if err := readJSON(cmd.InOrStdin(), profilePath, profile); err != nil {
					return err
				}
			}
			g, err := a.gameAgent(provider)
			if err != nil {
				return err
			}
			ex, outcome, err := g.GenerateExercise(cmd.Context(), gameType, difficulty, profile)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), careOutput{Result: ex, Outcome: outcome})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name")
	cmd.Flags().StringVar(&gameType, "game-type", "memory", "exercise type")
	cmd.Flags().StringVar(&difficulty, "difficulty", "easy", "difficulty level")
	cmd.Flags().StringVar(&profilePath, "profile", "", "user profile JSON file")
	return cmd
}

func newEvaluateCmd(a *app) *cobra.Command {
	var provider, answer string
	cmd := &cobra.Command{
		Use:   "evaluate <exercise.json|->",
		Short: "Grade an answer to an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ex domain.Exercise
			if err := readJSON(cmd.InOrStdin(), args[0], &ex); err != nil {
				return err
			}
			g, err := a.gameAgent(provider)
			if err != nil {
				return err
			}
			ev, outcome, err := g.EvaluateAnswer(cmd.Context(), ex, answer)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), careOutput{Result: ev, Outcome: outcome})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name")
	cmd.Flags().StringVar(&answer, "answer", "", "the user's answer")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newSoundsCmd(a *app) *cobra.Command {
	var (
		provider, mood, goal string
		prefs                []string
	)
	cmd := &cobra.Command{
		Use:   "sounds",
		Short: "Recommend sound therapy for a mood",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.therapyAgent(provider)
			if err != nil {
				return err
			}
			sounds, outcome, err := t.RecommendSounds(cmd.Context(), mood, prefs, goal)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), careOutput{Result: sounds, Outcome: outcome})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name")
	cmd.Flags().StringVar(&mood, "mood", "", "current mood")
	cmd.Flags().StringSliceVar(&prefs, "preference", nil, "preferred sound types")
	cmd.Flags().StringVar(&goal, "goal", "", "therapy goal")
	_ = cmd.MarkFlagRequired("mood")
	return cmd
}

func newMeditationCmd(a *app) *cobra.Command {
	var (
		provider string
		req      domain.MeditationRequest
	)
	cmd := &cobra.Command{
		Use:   "meditation",
		Short: "Write a guided meditation script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.therapyAgent(provider)
			if err != nil {
				return err
			}
			script, err := t.GuidedMeditation(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), script)
			return err
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name")
	cmd.Flags().IntVar(&req.DurationMinutes, "duration", 10, "length in minutes")
	cmd.Flags().StringVar(&req.FocusArea, "focus", "", "focus area")
	cmd.Flags().StringVar(&req.ExperienceLevel, "level", care.DefaultExperienceLevel, "experience level")
	_ = cmd.MarkFlagRequired("focus")
	return cmd
}

func newProgressCmd(a *app) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "progress <patient.json|->",
		Short: "Summarise patient progress for a caregiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data domain.PatientData
			if err := readJSON(cmd.InOrStdin(), args[0], &data); err != nil {
				return err
			}
			c, err := a.caregiverAgent(provider)
			if err != nil {
				return err
			}
			res, outcome, err := c.AnalyzeProgress(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), careOutput{Result: res, Outcome: outcome})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name")
	return cmd
}

func newDailyPlanCmd(a *app) *cobra.Command {
	var provider, constraintsPath string
	cmd := &cobra.Command{
		Use:   "daily-plan <profile.json|->",
		Short: "Build a daily care plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile domain.PatientProfile
			if err := readJSON(cmd.InOrStdin(), args[0], &profile); err != nil {
				return err
			}
			var constraints *domain.CaregiverConstraints
			if constraintsPath != "" {
				constraints = &domain.CaregiverConstraints{}
				if err := readJSON(cmd.InOrStdin(), constraintsPath, constraints); err != nil {
					return err
				}
			}
			c, err := a.caregiverAgent(provider)
			if err != nil {
				return err
			}
			plan, outcome, err := c.DailyPlan(cmd.Context(), profile, constraints)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), careOutput{Result: plan, Outcome: outcome})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name")
	cmd.Flags().StringVar(&constraintsPath, "constraints", "", "caregiver constraints JSON file")
	return cmd
}
