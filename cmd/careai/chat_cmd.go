package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"careai/internal/adapter/llm"
	"careai/internal/domain"
	"careai/internal/infra/logger"
	"careai/internal/usecase/conversation"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		provider string
		model    string
		system   string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a model, one line per turn (/reset clears history, /exit quits)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.llm()
			if err != nil {
				return err
			}
			if provider == "" {
				provider = a.cfg.Agent.Provider
			}
			pool := conversation.NewPool(
				conversation.NewFactory(reg, provider, agentOptions(a.cfg.Agent, logger.Component(a.log, "agent"))...),
				logger.Component(a.log, "session"),
			)
			sessionID, _, err := pool.Get("", "chat")
			if err != nil {
				return err
			}
			defer pool.Close(sessionID)

			out := cmd.OutOrStdout()
			opts := domain.GenerationOptions{Model: model}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				case "/reset":
					if err := pool.Reset(sessionID); err != nil {
						return err
					}
					fmt.Fprintln(out, "(history cleared)")
					continue
				}

				_, agent, err := pool.Get(sessionID, "chat")
				if err != nil {
					return err
				}
				reply, err := agent.Ask(cmd.Context(), line, system, opts)
				if err != nil {
					// A failed turn leaves history intact; keep the session going.
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					continue
				}
				fmt.Fprintln(out, reply)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name (default: priority order)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered providers and their models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.llm()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tKIND\tMODEL")
			for _, m := range reg.Models() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Provider, m.Kind, m.Model)
			}

			// Local servers can report what they actually have loaded.
			for _, pc := range providerConfigs(a.cfg) {
				if providerKind(pc.Type) != "local" {
					continue
				}
				local := llm.NewLocalProvider(pc, logger.Component(a.log, "llm"))
				models, err := local.ListModels(cmd.Context())
				if err != nil {
					a.log.Warn("local model listing failed", "provider", pc.Name, "base_url", local.BaseURL(), "error", err)
					continue
				}
				for _, m := range models {
					fmt.Fprintf(w, "%s\t%s\t%s\n", pc.Name, "local", m.Name)
				}
			}
			return w.Flush()
		},
	}
}
