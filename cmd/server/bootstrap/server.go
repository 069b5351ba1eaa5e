// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

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
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/engine"
	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/notification"
	"github.com/xcherryio/taskexpiry/persistence"
	"github.com/xcherryio/taskexpiry/persistence/dynamo"
	"github.com/xcherryio/taskexpiry/persistence/sql"
	"github.com/xcherryio/taskexpiry/service/async"
	processorsvc "github.com/xcherryio/taskexpiry/service/processor"
	routersvc "github.com/xcherryio/taskexpiry/service/router"
	sweepersvc "github.com/xcherryio/taskexpiry/service/sweeper"
	"go.uber.org/multierr"
)

const FlagConfig = "config"
const FlagService = "services"

const shutdownTimeout = 10 * time.Second

func StartTaskExpiryServerCli(c *cli.Context) {
	// register interrupt signal for graceful shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := c.String(FlagConfig)
	services := getServices(c)

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		rawLog.Fatalf("Unable to load config for path %v because of error %v", configPath, err)
	}
	shutdownFunc := StartTaskExpiryServer(rootCtx, cfg, services)
	// wait for os signals
	<-rootCtx.Done()

	ctx, cancF := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancF()
	err = shutdownFunc(ctx)
	if err != nil {
		fmt.Println("shutdown error:", err)
	}
}

type GracefulShutdown func(ctx context.Context) error

type stoppable interface {
	Stop(ctx context.Context) error
}

func StartTaskExpiryServer(rootCtx context.Context, cfg *config.Config, services map[string]bool) GracefulShutdown {
	if len(services) == 0 {
		services = map[string]bool{
			config.ServiceNameRouter:    true,
			config.ServiceNameProcessor: true,
			config.ServiceNameExpiry:    true,
		}
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
	err = cfg.ValidateForServices(serviceNames(services))
	if err != nil {
		logger.Fatal("config is invalid", tag.Error(err))
	}
	logger.Info("config is loaded", tag.Value(cfg.String()))

	var taskStore persistence.TaskStore
	if services[config.ServiceNameExpiry] || services[config.ServiceNameSweeper] {
		taskStore, err = newTaskStore(rootCtx, *cfg.TaskStore, logger)
		if err != nil {
			logger.Fatal("error on task store setup", tag.Error(err))
		}
	}

	var triggerStore persistence.TriggerStore
	if services[config.ServiceNameExpiry] || services[config.ServiceNameProcessor] {
		triggerStore, err = sql.NewSQLTriggerStore(*cfg.TriggerStore.SQL, logger)
		if err != nil {
			logger.Fatal("error on trigger store setup", tag.Error(err))
		}
	}

	var executor expiry.Executor
	if taskStore != nil {
		sender, err := notification.NewSender(rootCtx, cfg.Notification, logger)
		if err != nil {
			logger.Fatal("error on notification setup", tag.Error(err))
		}
		executor = expiry.NewExecutor(
			taskStore, sender, notification.NewStaticContactResolver(cfg.Notification), cfg.ExpiryService, logger)
	}

	// stopped in reverse order
	var servers []stoppable

	var notifier engine.TriggerNotifier
	if services[config.ServiceNameExpiry] {
		expiryLogger := logger.WithTags(tag.Service(config.ServiceNameExpiry))
		asyncServer, asyncService := async.NewDefaultAsyncServerWithGin(
			rootCtx, cfg.ExpiryService, triggerStore, executor, expiryLogger)
		err = asyncServer.Start()
		if err != nil {
			logger.Fatal("Failed to start expiry server", tag.Error(err))
		}
		servers = append(servers, asyncServer)
		notifier = asyncService.GetNotifier()
	} else if cfg.ExpiryService.ClientAddress != "" {
		notifier = async.NewHttpTriggerNotifier(cfg.ExpiryService.ClientAddress, logger)
	}

	if services[config.ServiceNameSweeper] {
		if cfg.Sweeper.Enabled {
			sweeperLogger := logger.WithTags(tag.Service(config.ServiceNameSweeper))
			sweeperServer, err := sweepersvc.NewSweeperServer(cfg.Sweeper, taskStore, executor, sweeperLogger)
			if err != nil {
				logger.Fatal("Failed to create sweeper server", tag.Error(err))
			}
			if err := sweeperServer.Start(rootCtx); err != nil {
				logger.Fatal("Failed to start sweeper server", tag.Error(err))
			}
			servers = append(servers, sweeperServer)
		} else {
			logger.Warn("sweeper service is requested but disabled in config")
		}
	}

	if services[config.ServiceNameProcessor] {
		processorLogger := logger.WithTags(tag.Service(config.ServiceNameProcessor))
		registry := engine.NewTriggerRegistry(triggerStore, notifier, processorLogger)
		processorServer, err := processorsvc.NewProcessorServer(rootCtx, *cfg, registry, processorLogger)
		if err != nil {
			logger.Fatal("Failed to create processor server", tag.Error(err))
		}
		if err := processorServer.Start(rootCtx); err != nil {
			logger.Fatal("Failed to start processor server", tag.Error(err))
		}
		servers = append(servers, processorServer)
	}

	if services[config.ServiceNameRouter] {
		routerLogger := logger.WithTags(tag.Service(config.ServiceNameRouter))
		routerServer, err := routersvc.NewRouterServer(*cfg, routerLogger)
		if err != nil {
			logger.Fatal("Failed to create router server", tag.Error(err))
		}
		if err := routerServer.Start(rootCtx); err != nil {
			logger.Fatal("Failed to start router server", tag.Error(err))
		}
		servers = append(servers, routerServer)
	}

	return func(ctx context.Context) error {
		// graceful shutdown, upstream first
		var errs error
		for i := len(servers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, servers[i].Stop(ctx))
		}
		if taskStore != nil {
			errs = multierr.Append(errs, taskStore.Close())
		}
		if triggerStore != nil {
			errs = multierr.Append(errs, triggerStore.Close())
		}
		_ = zapLogger.Sync()
		return errs
	}
}

func newTaskStore(ctx context.Context, cfg config.TaskStoreConfig, logger log.Logger) (persistence.TaskStore, error) {
	switch cfg.Extension {
	case config.TaskStoreExtensionPostgres:
		return sql.NewSQLTaskStore(*cfg.SQL, logger)
	case config.TaskStoreExtensionDynamoDB:
		return dynamo.NewDynamoTaskStore(ctx, *cfg.DynamoDB, logger)
	default:
		return nil, fmt.Errorf("unsupported task store extension %v", cfg.Extension)
	}
}

func getServices(c *cli.Context) map[string]bool {
	val := strings.TrimSpace(c.String(FlagService))
	tokens := strings.Split(val, ",")

	services := map[string]bool{}
	for _, token := range tokens {
		t := strings.TrimSpace(token)
		if t != "" {
			services[t] = true
		}
	}

	if len(services) == 0 {
		rawLog.Fatal("No services specified for starting")
	}
	return services
}

func serviceNames(services map[string]bool) []string {
	var names []string
	for name := range services {
		names = append(names, name)
	}
	return names
}
