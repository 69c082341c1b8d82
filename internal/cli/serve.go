package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/pollution-reports/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/pollution-reports/internal/adapter/kafka"
	"github.com/couchcryptid/pollution-reports/internal/config"
	"github.com/couchcryptid/pollution-reports/internal/observability"
	"github.com/couchcryptid/pollution-reports/internal/pipeline"
	"github.com/couchcryptid/pollution-reports/internal/store"
	"github.com/couchcryptid/pollution-reports/internal/view"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the report API, and run Kafka intake when enabled",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg := a.cfg
	logger := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Change feed and intake are feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var opts []store.Option
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, store.WithPublisher(writer))
		logger.Info("kafka enabled", "brokers", cfg.KafkaBrokers,
			"intake_topic", cfg.KafkaIntakeTopic, "events_topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("kafka disabled")
	}

	s, err := a.openStore(ctx, logger, metrics, opts...)
	if err != nil {
		return err
	}
	renderer := view.NewRenderer(s, view.NewTable(nil, cfg.RowExitDuration))

	reader, intake := newIntake(cfg, s, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Dependencies{
		Ready:   readiness(intake),
		Reports: s,
		Views:   renderer,
		Metrics: metrics,
	}, logger)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if intake != nil {
		go func() {
			if err := intake.Run(ctx); err != nil {
				logger.Error("intake error", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		logger.Error("http server error", "error", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return err
}

// newIntake builds the Kafka intake pipeline feeding s. Both results are nil
// when Kafka is disabled.
func newIntake(cfg *config.Config, s pipeline.Adder, logger *slog.Logger, metrics *observability.Metrics) (*kafkaadapter.Reader, *pipeline.Pipeline) {
	if !cfg.KafkaEnabled {
		return nil, nil
	}
	reader := kafkaadapter.NewReader(cfg, logger)
	p := pipeline.New(reader, pipeline.NewTransformer(logger), pipeline.NewStoreLoader(s, logger),
		logger, metrics, cfg.BatchSize)
	return reader, p
}

// readiness returns the checker behind /readyz. Without intake the service
// is ready as soon as it serves.
func readiness(intake *pipeline.Pipeline) httpadapter.ReadinessChecker {
	if intake == nil {
		return nil
	}
	return intake
}
