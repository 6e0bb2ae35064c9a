package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/eventhive/config"
	"github.com/randalmurphal/eventhive/pkg/eventhive/observability"
	"github.com/randalmurphal/eventhive/pkg/skull"
)

// flags are the command-line overrides applied on top of the loaded settings.
type flags struct {
	configPath string
	testMode   bool
	demoMode   bool
	logLevel   string
	logFormat  string
	otelLogs   bool
	telemetry  bool
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "skull",
		Short: "Run the talking skull",
		Long: `Skull listens for visitors, greets them and, unless in demo mode,
holds a spoken conversation: record, transcribe, check for voice commands,
ask the chatbot, speak the reply and move the jaw in time with it.

Settings come from the YAML or JSON file named by --config (or $SKULL_CONFIG),
then the environment ($OPENAI_API_KEY), then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.settings(cmd)
			if err != nil {
				return err
			}
			return run(cmd, s, f.telemetry)
		},
	}

	root.PersistentFlags().StringVar(&f.configPath, "config", "", "config file (default $"+config.EnvConfig+")")
	root.PersistentFlags().BoolVar(&f.testMode, "test", false, "use test collaborators instead of hardware and cloud backends")
	root.PersistentFlags().BoolVar(&f.demoMode, "demo", false, "greet visitors without holding a conversation")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&f.logFormat, "log-format", "", "log format: text or json")
	root.PersistentFlags().BoolVar(&f.otelLogs, "otel-logs", false, "send logs to the OpenTelemetry log provider")
	root.Flags().BoolVar(&f.telemetry, "telemetry", false, "record OpenTelemetry metrics and dispatch spans")

	root.AddCommand(newCheckCommand(f))
	return root
}

// settings loads the configuration and applies flags that were set.
func (f *flags) settings(cmd *cobra.Command) (config.Settings, error) {
	s, err := config.Load(f.configPath)
	if err != nil {
		return config.Settings{}, err
	}

	pf := cmd.Flags()
	if pf.Changed("test") {
		s.TestMode = f.testMode
	}
	if pf.Changed("demo") {
		s.DemoMode = f.demoMode
	}
	if pf.Changed("log-level") {
		s.Log.Level = f.logLevel
	}
	if pf.Changed("log-format") {
		s.Log.Format = f.logFormat
	}
	if pf.Changed("otel-logs") {
		s.Log.OTelBridge = f.otelLogs
	}
	return s, s.Validate()
}

func newCheckCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the selected backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.settings(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "test mode:  %v\n", s.TestMode)
			fmt.Fprintf(out, "demo mode:  %v\n", s.DemoMode)
			fmt.Fprintf(out, "tts:        %s\n", s.TTS.Mode)
			fmt.Fprintf(out, "stt:        %s\n", s.STT.Mode)
			fmt.Fprintf(out, "chat:       %s\n", s.Chat.Backend)
			fmt.Fprintf(out, "api key:    %v\n", s.OpenAI.APIKey != "")
			return nil
		},
	}
}

// run assembles the hive and blocks until the actors exit or the command
// context is cancelled.
func run(cmd *cobra.Command, s config.Settings, telemetry bool) error {
	ctx := cmd.Context()

	logger, err := observability.NewLogger(os.Stderr, observability.LoggerOptions{
		Level:      s.Log.Level,
		Format:     s.Log.Format,
		OTelBridge: s.Log.OTelBridge,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	deps := skull.Deps{Logger: logger}
	if telemetry {
		deps.Metrics = observability.NewMetricsRecorder()
		deps.Spans = observability.NewSpanManager()
	}

	queue := eventhive.NewQueue(
		eventhive.WithQueueLogger(logger),
		eventhive.WithQueueMetrics(deps.Metrics),
	)
	sys, err := skull.Build(s, queue, deps)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer func() {
		if err := sys.Close(); err != nil {
			logger.Warn("close", slog.String("error", err.Error()))
		}
	}()

	hive := eventhive.NewHive(queue,
		eventhive.WithBootSplitWait(s.BootSplitWait),
		eventhive.WithHiveLogger(logger),
	)
	sys.Register(hive)
	if err := sys.Arm(); err != nil {
		return err
	}

	logger.Info("skull starting",
		slog.Bool("test_mode", s.TestMode),
		slog.Bool("demo_mode", s.DemoMode),
		slog.Any("services", hive.Services()),
	)
	startErr := hive.Start(ctx)
	if startErr == nil {
		startErr = hive.Wait(ctx)
	}

	shutdownErr := hive.Shutdown(s.ShutdownTimeout)
	if errors.Is(startErr, context.Canceled) {
		logger.Info("interrupted, shutting down")
		startErr = nil
	}
	return errors.Join(startErr, shutdownErr)
}
