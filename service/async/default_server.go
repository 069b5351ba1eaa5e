// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package async

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/persistence"
	"go.uber.org/multierr"
)

const (
	PathFire           = "/internal/api/v1/expiry/fire"
	PathNotifyTriggers = "/internal/api/v1/expiry/notify-triggers"
	PathHealth         = "/internal/api/v1/health"
)

type defaultSever struct {
	rootCtx context.Context
	cfg     config.ExpiryServiceConfig
	logger  log.Logger

	engine     *gin.Engine
	httpServer *http.Server
	svc        Service
}

// NewDefaultAsyncServerWithGin returns the server together with its service,
// so that a trigger registry in the same process can notify it directly
func NewDefaultAsyncServerWithGin(
	rootCtx context.Context, cfg config.ExpiryServiceConfig, triggerStore persistence.TriggerStore,
	executor expiry.Executor, logger log.Logger,
) (Server, Service) {
	svc := NewAsyncServiceImpl(rootCtx, triggerStore, executor, cfg, logger)
	engine := newGinEngine(svc, logger)

	svrCfg := cfg.InternalHttpServer
	httpServer := &http.Server{
		Addr:              svrCfg.Address,
		ReadTimeout:       svrCfg.ReadTimeout,
		WriteTimeout:      svrCfg.WriteTimeout,
		ReadHeaderTimeout: svrCfg.ReadHeaderTimeout,
		IdleTimeout:       svrCfg.IdleTimeout,
		MaxHeaderBytes:    svrCfg.MaxHeaderBytes,
		TLSConfig:         svrCfg.TLSConfig,
		Handler:           engine,
		BaseContext: func(listener net.Listener) context.Context {
			// for graceful shutdown
			return rootCtx
		},
	}

	return &defaultSever{
		rootCtx:    rootCtx,
		cfg:        cfg,
		logger:     logger,
		engine:     engine,
		httpServer: httpServer,
		svc:        svc,
	}, svc
}

func newGinEngine(svc Service, logger log.Logger) *gin.Engine {
	engine := gin.Default()
	handler := newGinHandler(svc, logger)

	engine.POST(PathFire, handler.Fire)
	engine.POST(PathNotifyTriggers, handler.NotifyTriggers)
	engine.GET(PathHealth, handler.Health)
	return engine
}

func (s defaultSever) Start() error {
	go func() {
		err := s.httpServer.ListenAndServe()
		s.logger.Info("Internal Http Server for expiry service is closed", tag.Error(err))
	}()

	return s.svc.Start()
}

func (s defaultSever) Stop(ctx context.Context) error {
	err1 := s.httpServer.Shutdown(ctx)
	err2 := s.svc.Stop(ctx)
	return multierr.Combine(err1, err2)
}
