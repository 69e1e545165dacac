package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shazow/wifiportal/internal/announce"
	"github.com/shazow/wifiportal/internal/config"
	"github.com/shazow/wifiportal/internal/connmgr"
	"github.com/shazow/wifiportal/internal/creds"
	"github.com/shazow/wifiportal/internal/kv"
	"github.com/shazow/wifiportal/internal/led"
	"github.com/shazow/wifiportal/internal/loop"
	"github.com/shazow/wifiportal/internal/portal"
	"github.com/shazow/wifiportal/internal/scan"
	"github.com/shazow/wifiportal/radio"
	"github.com/shazow/wifiportal/ui"
)

const shutdownTimeout = 5 * time.Second

// daemon is the portal process: access point, loop and HTTP server.
type daemon struct {
	cfg    config.Config
	logger *slog.Logger
	// newRadio is GetRadio outside of tests.
	newRadio func(*slog.Logger, config.Config) (radio.Radio, error)
	openLED  func(name string) (led.LED, error)
	// ready, if set, is called once the portal is listening.
	ready func(addr string)
}

func newDaemon(logger *slog.Logger, cfg config.Config) *daemon {
	return &daemon{
		cfg:      cfg,
		logger:   logger,
		newRadio: GetRadio,
		openLED: func(name string) (led.LED, error) {
			return led.Open(name)
		},
	}
}

// openStore opens the credential database. If it cannot be opened the
// portal still runs with credentials kept in memory until restart.
func (d *daemon) openStore() (kv.Store, func()) {
	if err := os.MkdirAll(filepath.Dir(d.cfg.StatePath), 0o700); err != nil {
		d.logger.Error("failed to create state directory", "path", d.cfg.StatePath, "error", err)
	}
	db, err := kv.OpenSQLite(d.logger, d.cfg.StatePath)
	if err != nil {
		d.logger.Error("failed to open credential store, credentials will not survive a restart", "path", d.cfg.StatePath, "error", err)
		return kv.NewMemory(), func() {}
	}
	return db, func() {
		if err := db.Close(); err != nil {
			d.logger.Warn("failed to close credential store", "error", err)
		}
	}
}

func (d *daemon) assets() fs.FS {
	if d.cfg.Assets != "" {
		return os.DirFS(d.cfg.Assets)
	}
	return ui.FS
}

// startAP puts the radio in dual mode and brings up the provisioning access
// point. Failures are logged; the portal keeps running without it.
func (d *daemon) startAP(r radio.Radio) {
	if err := r.EnableDualMode(); err != nil {
		d.logger.Error("failed to enable dual mode", "error", err)
		return
	}
	addr, err := r.StartAP(d.cfg.APSSID, d.cfg.APPass)
	if err != nil {
		d.logger.Error("failed to start access point", "ssid", d.cfg.APSSID, "error", err)
		return
	}
	if d.cfg.APOpen() {
		d.logger.Warn("access point is open, passphrase shorter than 8 bytes", "ssid", d.cfg.APSSID)
	}
	d.logger.Info("access point started", "ssid", d.cfg.APSSID, "open", d.cfg.APOpen(), "ip", addr)
}

// Run serves the portal until ctx is cancelled.
func (d *daemon) Run(ctx context.Context) error {
	logger := d.logger

	store, closeStore := d.openStore()
	defer closeStore()

	r, err := d.newRadio(logger, d.cfg)
	if err != nil {
		logger.Error("failed to initialize radio, serving without one", "backend", d.cfg.Backend, "error", err)
		r = radio.Unavailable{Err: err}
	}
	d.startAP(r)

	cm := connmgr.New(logger, r, creds.New(logger, store, d.cfg.Namespace))
	cm.RetryInterval = d.cfg.Retry
	cm.AttemptTimeout = d.cfg.AttemptTimeout
	cm.AttemptPoll = d.cfg.AttemptPoll
	cm.LoadFromStore(ctx)

	var announcer *announce.Announcer
	if d.cfg.MDNS {
		port, err := announce.Port(d.cfg.Listen)
		if err != nil {
			logger.Warn("mDNS disabled", "listen", d.cfg.Listen, "error", err)
		} else {
			announcer = announce.New(logger, d.cfg.MDNSName, d.cfg.STAIface, port)
			cm.OnLink(announcer.OnLink)
		}
	}

	sc := scan.New(logger, r)
	sc.PollInterval = d.cfg.ScanPoll

	lp := loop.New(logger, sc, cm)
	lp.Yield = d.cfg.Yield

	l, err := d.openLED(d.cfg.LEDPin)
	if err != nil {
		logger.Warn("LED unavailable, using a stand-in", "pin", d.cfg.LEDPin, "error", err)
		l = led.NewMock()
	}

	assets := d.assets()
	portal.LogAssets(logger, assets)

	srv := &http.Server{
		Addr: d.cfg.Listen,
		Handler: portal.New(logger, portal.Options{
			Exec:   lp,
			Scans:  sc,
			Conn:   cm,
			Link:   r,
			LED:    l,
			Assets: assets,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", d.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lp.Run(ctx)
	}()

	errc := make(chan error, 1)
	go func() {
		logger.Info("HTTP server started", "addr", ln.Addr().String())
		if d.ready != nil {
			d.ready(ln.Addr().String())
		}
		errc <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	cancel()
	wg.Wait()

	if announcer != nil {
		announcer.Shutdown()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("stopped")
	return nil
}
