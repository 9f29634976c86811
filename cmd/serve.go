package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/agent"
	"github.com/ard14n/AJETE/internal/config"
	"github.com/ard14n/AJETE/internal/llm"
	"github.com/ard14n/AJETE/internal/observability"
	"github.com/ard14n/AJETE/internal/server"
	"github.com/ard14n/AJETE/internal/speech"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent control server",
	Long: "Starts the HTTP control surface and websocket stream. Runs are started and stopped\n" +
		"through the REST API; artifacts are served under /downloads.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		v.Set("server.port", port)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()

	client, err := llm.NewGeminiClient(cfg.LLM, logger)
	if err != nil {
		return err
	}

	// Voice is optional; without a key-backed synthesizer runs are silent.
	var synth schemas.Synthesizer
	if s, err := speech.NewGeminiSynthesizer(cfg.TTS, cfg.LLM.APIKey, logger); err != nil {
		logger.Warn("Speech synthesis unavailable.", zap.Error(err))
	} else {
		synth = s
	}

	hub := server.NewHub(logger)
	controller := agent.NewController(cfg, client, synth, hub, logger)
	hub.SetHandler(controller)

	srv := server.New(cfg, controller, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
