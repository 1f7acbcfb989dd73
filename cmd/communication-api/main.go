package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openimsdk/tools/db/redisutil"
	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Stormrider66/hockey-hub-sub002/internal/api"
	"github.com/Stormrider66/hockey-hub-sub002/internal/push"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/config"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/prommetrics"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/local"
	rediscache "github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/redis"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/controller"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/database/postgres"
)

const version = "1.0.0"

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:   "communication-api",
		Short: "team communication service with a cache-accelerated read path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config/communication.yml", "config file path")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	var cfg config.Config
	if err := config.LoadConfig(configPath, "COMMUNICATION", &cfg); err != nil {
		return err
	}
	if err := log.InitLoggerFromConfig("communication", "communication-api", "", "",
		cfg.Log.RemainLogLevel, cfg.Log.IsStdout, cfg.Log.IsJson, cfg.Log.StorageLocation,
		cfg.Log.RemainRotationCount, cfg.Log.RotationTime, version, cfg.Log.IsSimplify); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisutil.NewRedisClient(ctx, cfg.Redis.Build())
	if err != nil {
		return err
	}
	defer rdb.Close()
	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	var emitter push.Emitter
	if len(cfg.Kafka.Address) > 0 {
		kafkaEmitter, err := push.NewKafkaEmitter(cfg.Kafka.Address, cfg.Kafka.EventTopic)
		if err != nil {
			return err
		}
		// 发送路径不等Kafka确认，事件异步攒批下发
		emitter, err = push.NewBatchingEmitter(kafkaEmitter)
		if err != nil {
			return err
		}
	} else {
		emitter = push.NewNoopEmitter()
	}
	defer emitter.Close()

	metrics := prommetrics.NewCacheMetrics()
	msgCache := rediscache.NewMsgCache(rdb, cfg.Cache.TimelineLimit, metrics)
	conversationCache := local.NewConversationCache(ctx, rdb, rediscache.NewConversationCache(rdb, metrics))
	presenceCache := rediscache.NewPresenceCache(rdb, cfg.Presence.TypingWindow())

	msgDB := postgres.NewMsgPostgres(pool)
	conversationDB := postgres.NewConversationPostgres(pool)
	participantDB := postgres.NewParticipantPostgres(pool)

	deps := &api.Deps{
		MsgDatabase:          controller.NewMsgDatabase(msgDB, conversationDB, participantDB, msgCache, conversationCache, emitter),
		ConversationDatabase: controller.NewConversationDatabase(conversationDB, participantDB, msgDB, conversationCache, emitter),
		PresenceDatabase:     controller.NewPresenceDatabase(presenceCache, emitter, cfg.Presence.AwayAfter(), cfg.Presence.OfflineAfter()),
		Metrics:              metrics,
		Rdb:                  rdb,
		Pool:                 pool,
		PrometheusEnabled:    cfg.API.PrometheusEnabled,
	}

	// 周期性把进程内指标快照落到聚合键，方便直接在缓存侧巡检
	flushSecond := cfg.Cache.MetricsFlushSecond
	if flushSecond <= 0 {
		flushSecond = 60
	}
	crontab := cron.New(cron.WithSeconds())
	_, err = crontab.AddFunc(fmt.Sprintf("@every %ds", flushSecond), func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rediscache.FlushMetrics(flushCtx, rdb, metrics.Snapshot()); err != nil {
			log.ZWarn(flushCtx, "flush cache metrics failed", err)
		}
	})
	if err != nil {
		return errs.WrapMsg(err, "register metrics flush job failed")
	}
	crontab.Start()
	defer crontab.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.API.ListenIP, cfg.API.Port),
		Handler: api.NewRouter(deps),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.ZInfo(ctx, "communication-api listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errs.WrapMsg(err, "http server failed")
	}
	return nil
}
