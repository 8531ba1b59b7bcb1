package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sapang3/vision-crowd/internal/config"
	"github.com/Sapang3/vision-crowd/internal/contracts"
	"github.com/Sapang3/vision-crowd/internal/httpx"
	"github.com/Sapang3/vision-crowd/internal/logging"
	"github.com/Sapang3/vision-crowd/internal/mq"
	"github.com/Sapang3/vision-crowd/internal/mqttbridge"
	"github.com/Sapang3/vision-crowd/internal/sim"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "ingest")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicSamples)
	defer writer.Close()

	if cfg.MQTTBrokerURL != "" {
		bridge, err := mqttbridge.New(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTTopic, writer, logger)
		if err != nil {
			logger.Fatal("mqtt bridge", zap.Error(err))
		}
		defer bridge.Close()
		if err := bridge.Start(ctx); err != nil {
			logger.Fatal("mqtt bridge subscribe", zap.Error(err))
		}
	}

	if cfg.SimulatorTick > 0 {
		go runSimulator(ctx, cfg, writer, logger)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(15 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "ingest"})
	})

	router.Post("/v1/samples", func(w http.ResponseWriter, r *http.Request) {
		var sample contracts.RawSample
		if err := httpx.DecodeJSON(r, &sample); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if err := checkSample(sample); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		enrichSample(&sample, cfg.Zone)
		if err := mq.PublishJSON(r.Context(), writer, sample.Key(), sample); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.WriteJSON(w, http.StatusAccepted, sample)
	})

	router.Post("/v1/simulate", func(w http.ResponseWriter, r *http.Request) {
		type req struct {
			Count int `json:"count"`
		}
		body := req{Count: 10}
		_ = httpx.DecodeJSON(r, &body)

		if body.Count <= 0 {
			body.Count = 10
		}
		if body.Count > 500 {
			body.Count = 500
		}

		generator := sim.NewGenerator(cfg.SimulatorSeed, cfg.Zone)
		now := time.Now().UTC()
		sent := 0
		for i := 0; i < body.Count; i++ {
			sample := generator.Next(now.Add(time.Duration(i) * time.Second))
			if err := mq.PublishJSON(r.Context(), writer, sample.Key(), sample); err != nil {
				logger.Error("simulate publish", zap.Error(err))
				break
			}
			sent++
		}

		httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"requested": body.Count, "published": sent})
	})

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

	logger.Info("ingest listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ingest server", zap.Error(err))
	}
}

// runSimulator feeds generated samples at the configured cadence until the
// process shuts down.
func runSimulator(ctx context.Context, cfg config.Config, writer *kafka.Writer, logger *zap.Logger) {
	generator := sim.NewGenerator(cfg.SimulatorSeed, cfg.Zone)
	ticker := time.NewTicker(cfg.SimulatorTick)
	defer ticker.Stop()

	logger.Info("simulator running",
		zap.Duration("tick", cfg.SimulatorTick), zap.String("zone", cfg.Zone))

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sample := generator.Next(now.UTC())
			if err := mq.PublishJSON(ctx, writer, sample.Key(), sample); err != nil {
				logger.Error("simulator publish", zap.Error(err))
			}
		}
	}
}

// checkSample rejects payloads the engine could never repair: a NaN core
// field or an implausible magnitude. Mild noise passes; the engine's
// normalizer handles the rest.
func checkSample(s contracts.RawSample) error {
	for _, v := range []float64{s.TempC, s.Humidity, s.Density, s.Speed} {
		if math.IsInf(v, 0) {
			return errors.New("sample contains infinite reading")
		}
	}
	return nil
}

func enrichSample(s *contracts.RawSample, defaultZone string) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	if s.Zone == "" {
		s.Zone = defaultZone
	}
	if s.Phase == "" {
		s.Phase = "normal"
	}
}
