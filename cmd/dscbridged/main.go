// Command dscbridged is the server entrypoint: it loads configuration,
// wires the protocol engine (C1-C9) to the UI facade and metrics, accepts
// panel TCP connections, and serves the WebSocket facade until signaled to
// shut down. Flag/wiring style grounded on Atsika-aznet/cmd/azurl's main.go
// (flag.String per setting, fail fast on an invalid one) and
// examples/echo/server.go's accept loop.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pcanto/dscbridge/internal/config"
	"github.com/pcanto/dscbridge/internal/dispatch"
	"github.com/pcanto/dscbridge/internal/facade"
	"github.com/pcanto/dscbridge/internal/message"
	"github.com/pcanto/dscbridge/internal/panel"
	"github.com/pcanto/dscbridge/internal/state"
	"github.com/pcanto/dscbridge/internal/telemetry"
)

func main() {
	listenFlag := flag.String("listen", config.DefaultListenAddr, "Panel link TCP bind address")
	facadeFlag := flag.String("facade", config.DefaultFacadeAddr, "UI facade HTTP/WebSocket bind address")
	persistFlag := flag.String("persist-dir", "persist", "Directory holding the section-keyed JSON config file")
	configNameFlag := flag.String("config-name", "dscbridge", "Base name of the persisted config file (<name>.json)")
	type1AccessFlag := flag.String("type1-access-code", "", "8-digit Type 1 access code")
	type1IDFlag := flag.String("type1-integration-id", "", "8-digit Type 1 integration identifier")
	type2AccessFlag := flag.String("type2-access-code", "", "32-hex-digit Type 2 access code")
	logLevelFlag := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flag.Parse()

	log := telemetry.NewLogger(*logLevelFlag)
	entry := logrus.NewEntry(log)

	cfgStore, err := config.Open(*persistFlag, *configNameFlag)
	if err != nil {
		log.WithError(err).Fatal("dscbridged: loading persisted config")
	}
	persisted := cfgStore.Get()
	cfg := config.Apply(
		config.WithListenAddr(firstNonEmpty(*listenFlag, persisted.ListenAddr)),
		config.WithFacadeAddr(firstNonEmpty(*facadeFlag, persisted.FacadeAddr)),
		config.WithType1Credentials(firstNonEmpty(*type1AccessFlag, persisted.Type1AccessCode), firstNonEmpty(*type1IDFlag, persisted.Type1IntegrationID)),
		config.WithType2Credentials(firstNonEmpty(*type2AccessFlag, persisted.Type2AccessCode)),
		config.WithDefaultZoneDeviceClass(persisted.DefaultZoneDeviceClass),
		config.WithHeartbeatInterval(persisted.HeartbeatInterval),
		config.WithFlushQuiet(persisted.FlushQuiet),
		config.WithCommandResponseTimeout(persisted.CommandResponseTimeout),
		config.WithTxLockTimeout(persisted.TxLockTimeout),
	)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("dscbridged: invalid configuration")
	}
	if err := cfgStore.Save(cfg); err != nil {
		log.WithError(err).Warn("dscbridged: could not persist effective configuration")
	}

	metrics := telemetry.NewMetrics()
	metrics.MustRegister(prometheus.DefaultRegisterer)

	msgRegistry := message.NewRegistry()
	msgRegistry.MustRegisterAll(message.DefaultDescriptors())

	stateStore := state.NewStore()
	sessionRegistry := panel.NewRegistry()
	disp := dispatch.New(msgRegistry, stateStore, entry)

	sessionRegistry.Subscribe(func(ev panel.LifecycleEvent) {
		disp.HandleLifecycle(ev)
		switch ev.Kind {
		case panel.SessionConnected:
			metrics.RecordSessionConnected()
			entry.WithField("session_id", ev.SessionID).Info("dscbridged: panel session connected")
		case panel.SessionDisconnected:
			metrics.RecordSessionDisconnected()
			entry.WithField("session_id", ev.SessionID).Info("dscbridged: panel session disconnected")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := facade.NewHub(sessionRegistry, stateStore, cfg.DefaultZoneDeviceClass, entry)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: cfg.FacadeAddr, Handler: mux}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		entry.WithField("addr", cfg.FacadeAddr).Info("dscbridged: facade listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Error("dscbridged: facade server failed")
		}
	}()

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.WithError(err).Fatal("dscbridged: panel link listen failed")
	}
	entry.WithField("addr", cfg.ListenAddr).Info("dscbridged: panel link listening")

	creds := panel.Credentials{
		Type1AccessCode:    cfg.Type1AccessCode,
		Type1IntegrationID: cfg.Type1IntegrationID,
		Type2AccessCode:    cfg.Type2AccessCode,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		acceptLoop(ctx, listener, msgRegistry, sessionRegistry, creds, cfg, entry, disp, metrics)
	}()

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go cfgStore.WatchReload(ctx, hupCh, func(reloaded *config.Config) {
		entry.Info("dscbridged: config reloaded")
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		entry.WithField("signal", sig.String()).Info("dscbridged: shutting down")
		cancel()
		listener.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		httpServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}()

	wg.Wait()
}

const shutdownGrace = 10 * time.Second

// acceptLoop accepts panel TCP connections and hands each to
// panel.Registry.Accept, matching examples/echo/server.go's
// "accept, log, handle in a goroutine" shape.
func acceptLoop(
	ctx context.Context,
	listener net.Listener,
	msgRegistry *message.Registry,
	sessionRegistry *panel.Registry,
	creds panel.Credentials,
	cfg *config.Config,
	log *logrus.Entry,
	disp *dispatch.Dispatcher,
	metrics *telemetry.Metrics,
) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.WithError(err).Warn("dscbridged: accept failed")
			continue
		}

		go func(c net.Conn) {
			sess, err := sessionRegistry.Accept(ctx, c, msgRegistry, creds,
				panel.WithLogger(log),
				panel.WithHeartbeatInterval(cfg.HeartbeatInterval),
				panel.WithFlushQuiet(cfg.FlushQuiet),
				panel.WithCommandResponseTimeout(cfg.CommandResponseTimeout),
				panel.WithTxLockTimeout(cfg.TxLockTimeout),
				panel.WithRecordHandler(func(sessionID string, rec message.Record) {
					metrics.RecordPacketDecoded(rec.Name)
					disp.HandleRecord(sessionID, rec)
				}),
				panel.WithTransactionResultHandler(metrics.RecordTransactionResult),
			)
			if err != nil {
				log.WithError(err).WithField("remote_addr", c.RemoteAddr().String()).Warn("dscbridged: session handshake failed")
				return
			}
			<-sess.Done()
		}(conn)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
