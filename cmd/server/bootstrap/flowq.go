// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"fmt"
	rawLog "log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/engine"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/persistence/lease"
	"github.com/flowqio/flowq/persistence/task"
	"github.com/flowqio/flowq/runner"
	"github.com/flowqio/flowq/service/api"
	"github.com/flowqio/flowq/service/async"
)

const ApiServiceName = "api"
const AsyncServiceName = "async"

const FlagConfig = "config"
const FlagService = "service"

func StartFlowQServerCli(c *cli.Context) {
	// register interrupt signal for graceful shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := c.String(FlagConfig)
	services := getServices(c)

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		rawLog.Fatalf("Unable to load config for path %v because of error %v", configPath, err)
	}
	shutdownFunc := StartFlowQServer(rootCtx, cfg, services)
	// wait for os signals
	<-rootCtx.Done()

	ctx, cancF := context.WithTimeout(context.Background(), time.Second*10)
	defer cancF()
	err = shutdownFunc(ctx)
	if err != nil {
		fmt.Println("shutdown error:", err)
	}
}

type GracefulShutdown func(ctx context.Context) error

func StartFlowQServer(rootCtx context.Context, cfg *config.Config, services map[string]bool) GracefulShutdown {
	if len(services) == 0 {
		services = map[string]bool{ApiServiceName: true, AsyncServiceName: true}
	}

	zapLogger, err := cfg.Log.NewZapLogger()
	if err != nil {
		rawLog.Fatalf("Unable to create a new zap logger %v", err)
	}
	logger := log.NewLogger(zapLogger)
	err = cfg.ValidateAndSetDefaults()
	if err != nil {
		logger.Fatal("config is invalid", tag.Error(err))
	}
	logger.Info("config is loaded", tag.Value(cfg.String()))

	taskStore, err := task.NewSQLTaskStore(*cfg.Database.SQL, logger)
	if err != nil {
		logger.Fatal("error on persistence setup", tag.Error(err))
	}
	leaseStore, err := lease.NewSQLLeaseStore(*cfg.Database.SQL, logger)
	if err != nil {
		logger.Fatal("error on lease persistence setup", tag.Error(err))
	}

	var bus events.Bus = events.NewInMemoryBus()
	var relay *events.PulsarRelayBus
	if cfg.MessageQueue != nil && cfg.MessageQueue.Pulsar != nil {
		relay = events.NewPulsarRelayBus(
			*cfg.MessageQueue.Pulsar, cfg.AsyncService.ScheduleTick.NodeId, bus, logger)
		err = relay.Start()
		if err != nil {
			logger.Fatal("Failed to start pulsar event relay", tag.Error(err))
		}
		bus = relay
	}

	// redis keeps runners and abort flags visible to every instance; the
	// in-memory fallback only fits a single-instance deployment
	var kvStore runner.KVStore
	if cfg.Runners.Redis.Address != "" {
		kvStore = runner.NewRedisKVStore(cfg.Runners)
	} else {
		logger.Warn("runners.redis.address is not configured, using in-process runner registry and abort flags")
		kvStore = runner.NewMemoryKVStore(cfg.Runners)
	}
	aborts := runner.NewAbortDispatcher(cfg.Runners, kvStore, kvStore, logger)

	scheduler := engine.NewScheduler(taskStore, bus, logger)

	var apiServer api.Server
	if services[ApiServiceName] {
		apiServer = api.NewDefaultAPIServerWithGin(
			rootCtx, *cfg, scheduler, bus, kvStore, aborts,
			logger.WithTags(tag.Service(ApiServiceName)))
		err = apiServer.Start()
		if err != nil {
			logger.Fatal("Failed to start api server", tag.Error(err))
		}
	}

	var asyncServer async.Server
	if services[AsyncServiceName] {
		asyncServer = async.NewDefaultAsyncServer(
			rootCtx, *cfg, taskStore, leaseStore, bus, aborts,
			logger.WithTags(tag.Service(AsyncServiceName)))
		err = asyncServer.Start()
		if err != nil {
			logger.Fatal("Failed to start async server", tag.Error(err))
		}
	}

	return func(ctx context.Context) error {
		// graceful shutdown
		var errs error
		// first stop taking new api requests
		if apiServer != nil {
			err := apiServer.Stop(ctx)
			if err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if asyncServer != nil {
			err := asyncServer.Stop(ctx)
			if err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if relay != nil {
			err := relay.Stop()
			if err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		err := kvStore.Close()
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		err = taskStore.Close()
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		err = leaseStore.Close()
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		return errs
	}
}

func getServices(c *cli.Context) map[string]bool {
	val := strings.TrimSpace(c.String(FlagService))
	tokens := strings.Split(val, ",")

	if len(tokens) == 0 {
		rawLog.Fatal("No services specified for starting")
	}

	services := map[string]bool{}
	for _, token := range tokens {
		t := strings.TrimSpace(token)
		services[t] = true
	}

	return services
}
