package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/aggregator"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/config"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/events"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/feed"
	apphttp "github.com/Alexmontesino96/GymAPI-sub008/pkg/http"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/insights"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/metrics"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/privacy"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/store"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/websocket"
)

func main() {
	demo := flag.Bool("demo", false, "generate synthetic activity events for local development")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Get()
	defer logger.Sync()

	logger.Info("starting activity aggregation engine",
		zap.Int("port", cfg.Server.Port),
		zap.Int("min_cohort", cfg.Privacy.MinCohort))

	memStore := store.NewMemStore(cfg.Store.CleanupInterval)
	defer memStore.Close()

	m := metrics.NewDefault()

	hub := websocket.NewHub(cfg.Realtime.SendBuffer, logger)
	hub.OnDrop(func(tenantID string) {
		m.BroadcastDrops.WithLabelValues(tenantID).Inc()
	})
	hub.OnCountChange(func(total int) {
		m.Subscribers.Set(float64(total))
	})

	policy := privacy.NewPolicy(cfg.Privacy.MinCohort, cfg.Privacy.RankingMinCohort)
	publisher := feed.NewPublisher(memStore, cfg.Feed.MaxItems, cfg.Store.FeedTTL, logger)
	insightsSvc := insights.NewService(memStore, policy, cfg.Realtime.PeakHours, logger)

	agg := aggregator.New(memStore, policy, publisher, events.NewHubBroadcaster(hub), aggregator.Config{
		RealtimeTTL:   cfg.Store.RealtimeTTL,
		DailyTTL:      cfg.Store.DailyTTL,
		WeeklyTTL:     cfg.Store.WeeklyTTL,
		FeedTTL:       cfg.Store.FeedTTL,
		DedupeTTL:     cfg.Store.DedupeTTL,
		OpTimeout:     cfg.Store.OpTimeout,
		DedupeEntries: cfg.Realtime.DedupeEntries,
	}, logger, m)

	server := apphttp.NewServer(cfg, apphttp.Deps{
		Store:    memStore,
		Feed:     publisher,
		Insights: insightsSvc,
		Hub:      hub,
		Metrics:  m,
	}, logger)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *demo {
		logger.Warn("demo producer enabled, synthetic events will be generated")
		go runDemoProducer(rootCtx, agg)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	hub.Stop()
	logger.Info("shutdown complete")
}

// runDemoProducer feeds the aggregator with synthetic tenant activity so the
// feed, realtime stats and rankings populate without an upstream gateway.
func runDemoProducer(ctx context.Context, agg *aggregator.Aggregator) {
	classes := []string{"CrossFit", "Yoga", "Spinning", "HIIT", "Pilates"}
	achievements := []string{"streak_7_days", "first_class", "100_workouts"}
	records := []string{"deadlift", "bench_press", "squat", "5k_run"}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	session := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session++
			class := classes[rand.Intn(len(classes))]
			switch rand.Intn(4) {
			case 0:
				agg.OnClassCheckin(ctx, aggregator.CheckinEvent{
					TenantID:  "demo",
					ClassName: class,
					ClassID:   fmt.Sprintf("class-%s", class),
					SessionID: fmt.Sprintf("session-%d", session),
				})
			case 1:
				agg.OnAchievementUnlocked(ctx, aggregator.AchievementEvent{
					TenantID:        "demo",
					AchievementType: achievements[rand.Intn(len(achievements))],
				})
			case 2:
				agg.OnPersonalRecord(ctx, aggregator.PersonalRecordEvent{
					TenantID:   "demo",
					RecordType: records[rand.Intn(len(records))],
				})
			case 3:
				agg.OnClassNearCapacity(ctx, aggregator.CapacityEvent{
					TenantID:  "demo",
					ClassName: class,
					Current:   15 + rand.Intn(5),
					Capacity:  20,
				})
			}
		}
	}
}
