package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sapang3/vision-crowd/internal/config"
	"github.com/Sapang3/vision-crowd/internal/contracts"
	"github.com/Sapang3/vision-crowd/internal/ews"
	"github.com/Sapang3/vision-crowd/internal/export"
	"github.com/Sapang3/vision-crowd/internal/httpx"
	"github.com/Sapang3/vision-crowd/internal/logging"
	"github.com/Sapang3/vision-crowd/internal/metrics"
	"github.com/Sapang3/vision-crowd/internal/mq"
	"github.com/Sapang3/vision-crowd/internal/realtime"
)

var errNoSnapshot = errors.New("no snapshot computed yet")

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "ews-engine")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	engine, err := ews.New(cfg.Engine)
	if err != nil {
		// An inconsistent alert ladder must never score live traffic.
		logger.Fatal("engine refused to start", zap.Error(err))
	}

	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := mq.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicSamples, cfg.ConsumerGroupPrefix+"-engine")
	defer reader.Close()

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicSnapshots)
	defer writer.Close()

	hub := realtime.NewHub(logger)

	go consume(ctx, reader, writer, engine, hub, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(15 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "ews-engine"})
	})

	router.Get("/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		snapshot, ok := engine.Latest()
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, errNoSnapshot)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, snapshot)
	})

	router.Get("/v1/history", func(w http.ResponseWriter, r *http.Request) {
		n := parseCount(r.URL.Query().Get("n"), 288, engine.Capacity())
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": engine.History(n)})
	})

	router.Get("/v1/export/csv", func(w http.ResponseWriter, r *http.Request) {
		n := parseCount(r.URL.Query().Get("n"), engine.Capacity(), engine.Capacity())
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="ews_history.csv"`)
		if err := export.WriteCSV(w, engine.History(n)); err != nil {
			logger.Error("csv export", zap.Error(err))
		}
	})

	router.Get("/v1/export/xlsx", func(w http.ResponseWriter, r *http.Request) {
		n := parseCount(r.URL.Query().Get("n"), engine.Capacity(), engine.Capacity())
		workbook, err := export.BuildWorkbook(engine.History(n))
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		defer workbook.Close()

		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="ews_history.xlsx"`)
		if err := workbook.Write(w); err != nil {
			logger.Error("xlsx export", zap.Error(err))
		}
	})

	router.Get("/v1/stream", hub.Handler)
	router.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("ews-engine listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("samples_topic", cfg.KafkaTopicSamples),
		zap.String("snapshots_topic", cfg.KafkaTopicSnapshots),
		zap.Int("history_capacity", engine.Capacity()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ews-engine server", zap.Error(err))
	}
}

// consume drives the single ingestion path: read a sample, run it through
// the engine, publish and broadcast the snapshot.
func consume(ctx context.Context, reader *kafka.Reader, writer *kafka.Writer,
	engine *ews.Engine, hub *realtime.Hub, logger *zap.Logger) {

	lastLevel := engine.Level()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("engine consumer shutting down")
				return
			}
			logger.Error("read sample", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}

		sample, err := mq.DecodeMessage[contracts.RawSample](msg)
		if err != nil {
			logger.Warn("drop malformed sample", zap.Error(err))
			continue
		}
		if sample.Timestamp.IsZero() {
			sample.Timestamp = time.Now().UTC()
		}

		snapshot, err := engine.Ingest(sample)
		if err != nil {
			if errors.Is(err, ews.ErrOutOfOrder) {
				metrics.SamplesIngested.WithLabelValues("rejected").Inc()
				logger.Warn("reject out-of-order sample",
					zap.Time("sample_ts", sample.Timestamp), zap.String("zone", sample.Zone))
				continue
			}
			logger.Error("ingest sample", zap.Error(err))
			continue
		}

		outcome := "ok"
		if snapshot.Degraded {
			outcome = "degraded"
		}
		metrics.SamplesIngested.WithLabelValues(outcome).Inc()
		metrics.ExtendedRisk.Set(snapshot.ExtendedRisk)
		metrics.AlertLevel.Set(float64(snapshot.Alert))

		if snapshot.Alert != lastLevel {
			metrics.AlertTransitions.WithLabelValues(lastLevel.String(), snapshot.Alert.String()).Inc()
			logger.Info("alert level changed",
				zap.String("from", lastLevel.String()),
				zap.String("to", snapshot.Alert.String()),
				zap.Float64("risk_extended", snapshot.ExtendedRisk))
			lastLevel = snapshot.Alert
		}

		hub.Broadcast(snapshot)

		if err := mq.PublishJSON(ctx, writer, snapshot.Key(), snapshot); err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Temporary() {
				logger.Warn("kafka temporary publish error", zap.Error(kerr))
			} else {
				logger.Error("publish snapshot", zap.Error(err))
			}
			continue
		}

		logger.Debug("snapshot published",
			zap.String("id", snapshot.ID),
			zap.Float64("risk", snapshot.PhysicalRisk),
			zap.Float64("risk_extended", snapshot.ExtendedRisk),
			zap.String("alert", snapshot.Alert.String()))
	}
}

func parseCount(raw string, fallback, max int) int {
	n := fallback
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			n = parsed
		}
	}
	if n > max {
		n = max
	}
	return n
}
