package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sapang3/vision-crowd/internal/config"
	"github.com/Sapang3/vision-crowd/internal/contracts"
	"github.com/Sapang3/vision-crowd/internal/logging"
	"github.com/Sapang3/vision-crowd/internal/metrics"
	"github.com/Sapang3/vision-crowd/internal/mq"
)

// notification is the webhook payload sent on an alert escalation.
type notification struct {
	ID          string               `json:"id"`
	SnapshotID  string               `json:"snapshot_id"`
	Timestamp   time.Time            `json:"timestamp"`
	Zone        string               `json:"zone"`
	Level       contracts.AlertLevel `json:"level"`
	Previous    contracts.AlertLevel `json:"previous"`
	Risk        float64              `json:"risk_extended"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
}

// cooldownLedger suppresses repeat pages for the same zone and level
// within the cooldown window. In-memory on purpose: alerting history
// beyond the rolling window is not this system's concern.
type cooldownLedger struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	window   time.Duration
}

func newCooldownLedger(window time.Duration) *cooldownLedger {
	return &cooldownLedger{lastSent: make(map[string]time.Time), window: window}
}

// Allow records and permits a notification unless one for the same key
// went out inside the window.
func (c *cooldownLedger) Allow(zone string, level contracts.AlertLevel, now time.Time) bool {
	key := zone + "|" + level.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if sent, ok := c.lastSent[key]; ok && now.Sub(sent) < c.window {
		return false
	}
	c.lastSent[key] = now
	return true
}

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "alert-notifier")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.WebhookURL == "" {
		logger.Fatal("WEBHOOK_URL is required for the alert notifier")
	}

	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	reader := mq.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicSnapshots, cfg.ConsumerGroupPrefix+"-notifier")
	defer reader.Close()

	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	ledger := newCooldownLedger(cfg.NotifyCooldown)
	lastLevel := map[string]contracts.AlertLevel{}

	logger.Info("alert-notifier consuming",
		zap.String("topic", cfg.KafkaTopicSnapshots),
		zap.String("min_level", cfg.NotifyMinLevel.String()),
		zap.Duration("cooldown", cfg.NotifyCooldown))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("alert-notifier shutting down")
				return
			}
			logger.Error("read snapshot", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}

		snapshot, err := mq.DecodeMessage[contracts.RiskSnapshot](msg)
		if err != nil {
			logger.Warn("drop malformed snapshot", zap.Error(err))
			continue
		}

		previous, seen := lastLevel[snapshot.Zone]
		if !seen {
			previous = contracts.LevelGreen
		}
		lastLevel[snapshot.Zone] = snapshot.Alert

		// Only escalations page; holding a level or de-escalating never does.
		if snapshot.Alert <= previous || snapshot.Alert < cfg.NotifyMinLevel {
			continue
		}
		if !ledger.Allow(snapshot.Zone, snapshot.Alert, time.Now().UTC()) {
			continue
		}

		n := notification{
			ID:         uuid.NewString(),
			SnapshotID: snapshot.ID,
			Timestamp:  snapshot.Timestamp,
			Zone:       snapshot.Zone,
			Level:      snapshot.Alert,
			Previous:   previous,
			Risk:       snapshot.ExtendedRisk,
			Title:      fmt.Sprintf("Crowd alert %s at %s", snapshot.Alert, snapshot.Zone),
			Description: fmt.Sprintf("Extended risk %.3f escalated the alert level from %s to %s.",
				snapshot.ExtendedRisk, previous, snapshot.Alert),
		}

		resp, err := client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(n).
			Post(cfg.WebhookURL)
		if err != nil {
			metrics.WebhookDeliveries.WithLabelValues("error").Inc()
			logger.Error("webhook delivery", zap.Error(err))
			continue
		}
		if resp.IsError() {
			metrics.WebhookDeliveries.WithLabelValues("error").Inc()
			logger.Error("webhook rejected",
				zap.Int("status", resp.StatusCode()), zap.String("zone", snapshot.Zone))
			continue
		}

		metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
		logger.Info("alert notification sent",
			zap.String("zone", snapshot.Zone),
			zap.String("level", snapshot.Alert.String()),
			zap.Float64("risk_extended", snapshot.ExtendedRisk))
	}
}
