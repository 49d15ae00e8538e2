package main

/*
 * Copyright 2020 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// gatewayd is the process entrypoint: load config, build the Page/REST
// registries, wire the ginfront HTTP codec, start listening. The listen/
// accept loop itself is net/http's *http.Server -- this is an HTTP gateway,
// not a raw TCP listener, so there is no tcp.TCPServer to bootstrap here;
// main only owns config load, registry wiring, and graceful SIGINT/SIGTERM
// shutdown around httpServer.Shutdown.
import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/socube/WaarpGatewayKernel/engine"
	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/ginfront"
	"github.com/socube/WaarpGatewayKernel/internal/config"
	"github.com/socube/WaarpGatewayKernel/internal/gwlog"
	"github.com/socube/WaarpGatewayKernel/page"
	"github.com/socube/WaarpGatewayKernel/rest"
	"github.com/socube/WaarpGatewayKernel/store"
)

func main() {
	log := gwlog.Default
	log.AppName = "gatewayd"
	log.OutputToConsole = true
	log.DisableLogger = false
	if err := log.Init(); err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load("gatewayd", ".", "/etc/gatewayd")
	if err != nil {
		log.Errorw("config load failed", "error", err)
		os.Exit(1)
	}

	pages := page.NewRegistry()
	methods := rest.NewRegistry()

	if err := registerItemsResource(cfg, methods); err != nil {
		log.Errorw("failed to wire the reference items resource", "error", err)
		os.Exit(1)
	}

	caps := &noopCapabilities{}
	srv := ginfront.New(cfg, pages, methods, caps, log)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("gatewayd listening", "addr", cfg.ListenAddr)
		var serveErr error
		if cfg.TlsCertPemFile != "" && cfg.TlsCertKeyFile != "" {
			serveErr = httpServer.ListenAndServeTLS(cfg.TlsCertPemFile, cfg.TlsCertKeyFile)
		} else {
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			log.Errorw("listener stopped unexpectedly", "error", serveErr)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}

// registerItemsResource wires the reference sqlite-backed DataModelHandler
// under /api/items, exercising store.Table end to end (§4.4).
func registerItemsResource(cfg *config.Config, methods *rest.Registry) error {
	table, err := store.Open(cfg.SqlitePath, "items", "items-store", cfg.CircuitBreakerTimeoutMs, cfg.CircuitBreakerMaxConcurrent)
	if err != nil {
		return err
	}

	methods.Register(&rest.DataModelHandler{
		Base:       "/api/items",
		PrimaryKey: "id",
		Backing:    table,
	})
	return nil
}

// noopCapabilities is the minimal Capabilities implementation: every hook
// is a pass-through, suitable for a deployment whose only registered
// surface is the REST DataModelHandler resources (they authorize
// themselves via their own Authenticator, not via Capabilities.CheckConnection).
type noopCapabilities struct{}

func (noopCapabilities) CheckConnection(remoteAddr, path string, headers map[string][]string) *engineerr.Error {
	return nil
}

func (noopCapabilities) OnError(rc *engine.RequestContext, err *engineerr.Error) {}

func (noopCapabilities) BeforeSimplePage(rc *engine.RequestContext) *engineerr.Error {
	return nil
}

func (noopCapabilities) FinalData(rc *engine.RequestContext, role page.Role) *engineerr.Error {
	return nil
}

func (noopCapabilities) BusinessValidRequestAfterAllDataReceived(rc *engine.RequestContext) *engineerr.Error {
	return nil
}

func (noopCapabilities) IsCookieValid(name, value string) bool {
	return value != ""
}
