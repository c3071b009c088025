package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parley/internal/agent"
	"parley/internal/backend"
	"parley/internal/config"
	"parley/internal/plugin"
	"parley/internal/sink"
	"parley/internal/store"
	"parley/internal/transcript"
)

// chatCmd processes a single prompt and exits.
var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send a single prompt and print the streamed response",
	Long: `Processes one prompt through the full pipeline and exits.

The response streams to the configured sinks. The turn is recorded in
session history but no transcript file is written; transcripts belong
to interactive sessions.

Example:
  parley chat "explain goroutines in one paragraph"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd.Context(), strings.Join(args, " "))
	},
}

// buildAgent assembles an Agent from the active configuration. The
// returned cleanup closes the session store.
func buildAgent(ctx context.Context, cfg *config.Config) (*agent.Agent, func(), error) {
	be, err := backend.New(ctx, backend.Options{
		Provider:    backend.Provider(cfg.LLM.Provider),
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("backend setup: %w", err)
	}

	builder := agent.NewBuilder().
		WithBackend(be).
		WithLogger(logger).
		WithSaveDir(cfg.Conversations.SaveDir)

	for _, pc := range cfg.Plugins {
		p, err := plugin.Build(pc.Name, pc.Options)
		if err != nil {
			// Plugins are optional transforms; a bad entry is reported
			// and skipped, never a startup failure.
			logger.Warn("skipping plugin",
				zap.String("plugin", pc.Name),
				zap.Error(err))
			continue
		}
		builder.WithPlugin(p)
	}

	if cfg.Sinks.Terminal.Enabled {
		term := sink.NewTerminal()
		builder.WithSink(term, cfg.Sinks.Default == term.Name())
	}
	if cfg.Sinks.File.Enabled {
		fs := sink.NewFile(cfg.Sinks.File.Path)
		builder.WithSink(fs, cfg.Sinks.Default == fs.Name())
	}

	cleanup := func() {}
	if cfg.History.Enabled {
		st, err := store.Open(cfg.History.DatabasePath, logger)
		if err != nil {
			// History is best effort; a broken database should not keep
			// the conversation from starting.
			logger.Warn("session history unavailable", zap.Error(err))
		} else {
			cleanup = func() { _ = st.Close() }
			builder.WithTurnObserver(func(sessionID string, n int, turn transcript.Turn) {
				if err := st.StoreTurn(sessionID, n, string(turn.Role), turn.Content); err != nil {
					logger.Warn("failed to record turn", zap.Error(err))
				}
			})
		}
	}

	a, err := builder.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// runOneShot streams a single prompt through the pipeline.
func runOneShot(ctx context.Context, prompt string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, cleanup, err := buildAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Debug("processing prompt",
		zap.String("session", a.SessionID()),
		zap.Int("length", len(prompt)))

	if _, err := a.ProcessStream(ctx, prompt, cfg.Sinks.ActiveSinks()...); err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	return nil
}

// runInteractive runs the read-eval-print loop. On exit the session is
// summarized and the transcript saved.
func runInteractive(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, cleanup, err := buildAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("parley %s (%s/%s)\n", cfg.Version, cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Println(`Type a message, or "exit" to save and quit.`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if _, err := a.ProcessStream(ctx, line, cfg.Sinks.ActiveSinks()...); err != nil {
			// Already rendered to the sinks; keep the session alive.
			logger.Warn("turn failed", zap.Error(err))
		}
	}

	return teardown(a)
}

// teardown summarizes the session and writes the transcript. Summarization
// gets its own context so a Ctrl-C that ended the loop does not also
// cancel the title request.
func teardown(a *agent.Agent) error {
	if a.Transcript().Empty() {
		return nil
	}

	sumCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	title := a.Summarize(sumCtx)
	path, err := a.Persist()
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	fmt.Printf("\nSaved %q to %s\n", title, path)
	return nil
}
