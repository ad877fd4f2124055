package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "dynamic_power/docs"
	"dynamic_power/internal/bus"
	"dynamic_power/internal/config"
	"dynamic_power/internal/handlers"
	"dynamic_power/internal/hardware"
	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
	"dynamic_power/internal/repository"
	"dynamic_power/internal/repository/db"
	"dynamic_power/internal/server"
	"dynamic_power/internal/service"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
)

const (
	procMount       = "/proc"
	sysMount        = "/sys"
	shutdownTimeout = 10 * time.Second
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "dynamic_power",
	Short: "Dynamic power profile daemon",
	Long: `dynamic_power switches CPU power profiles from system load and power source.

It serves org.dynamic_power.Daemon and net.hadess.PowerProfiles on the
system bus and, when configured, a local HTTP API.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the configuration file")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(parent context.Context) error {
	// load config
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// init logger
	log := logger.Get(logger.Level(debug, settings.Daemon.LogLevel))
	log.Infow("starting", "config", settings.Path, "profiles", settings.Catalog.Names())

	// open DB
	conn, err := openDB(settings.Daemon.DBPath, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warnw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// journal writer outlives the loop so its last writes are drained
	recorder := service.NewRecorder(repos.EventRepo, repos.StateRepo, log.Named("journal"))
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(recorderCtx)
	}()

	// hardware
	writer := hardware.SysfsWriter{}
	load, err := hardware.NewLoadSampler(procMount)
	if err != nil {
		return err
	}
	probe, err := hardware.NewSupplyProbe(sysMount)
	if err != nil {
		return err
	}

	// control loop
	engine := service.NewEngine(service.EngineConfig{
		Catalog:     settings.Catalog,
		GracePeriod: settings.GracePeriod,
		Tick:        service.DefaultTick,
	}, service.EngineDeps{
		Load:     load,
		Actuator: hardware.NewActuator(writer, log.Named("actuator")),
		Features: hardware.NewFeatureApplier(writer, log.Named("features")),
		Journal:  recorder,
		Log:      log.Named("engine"),
	})
	services := service.NewService(repos, engine, settings.Daemon.HTTP.JWTSecret, log.Named("service"))

	if settings.Daemon.RestoreOverrides {
		restoreOverrides(ctx, repos.StateRepo, services, log)
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(ctx)
	}()

	// hot reload
	watcher := config.NewWatcher(settings.Path, engine, log.Named("config"))
	go func() {
		if werr := watcher.Run(ctx); werr != nil && ctx.Err() == nil {
			log.Warnw("config watcher stopped", "err", werr)
		}
	}()

	// system bus
	busConn := connectBus(ctx, services, log)
	if busConn != nil {
		defer func() { _ = busConn.Close() }()
	}
	monitor := bus.NewPowerSourceMonitor(busConn, probe, engine, service.DefaultTick, log.Named("power_source"))
	go monitor.Run(ctx)

	// optional HTTP API
	var srv *server.Server
	if listen := settings.Daemon.HTTP.Listen; listen != "" {
		srv = &server.Server{}
		runHTTPServer(srv, listen, handlers.NewHandler(services, log.Named("http")).InitRoutes(), log)
	}

	<-ctx.Done()
	log.Infow("shutting down...")

	shutdown(srv, log)
	<-engineDone
	stopRecorder()
	<-recorderDone
	return nil
}

// openDB initializes the SQLite database at path.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening state database", "path", path)
	return db.InitDB(path)
}

// restoreOverrides re-submits the override and requested thresholds saved by
// the previous run. They are queued before the loop starts.
func restoreOverrides(ctx context.Context, repo repository.StateRepo, ctl service.Control, log *logger.Logger) {
	saved, err := repo.Load(ctx)
	if err != nil {
		log.Warnw("restore overrides: load failed", "err", err)
		return
	}
	if saved.OverrideProfile != "" {
		if err := ctl.SetProfile(ctx, saved.OverrideProfile, saved.OverridePrivileged); err != nil {
			log.Warnw("restore overrides: profile", "err", err)
		}
	}
	if saved.RequestedThresholds != (models.Thresholds{}) {
		if err := ctl.SetThresholds(ctx, saved.RequestedThresholds); err != nil {
			log.Warnw("restore overrides: thresholds", "err", err)
		}
	}
	log.Infow("overrides restored",
		"override_profile", saved.OverrideProfile,
		"requested_low", saved.RequestedThresholds.Low,
		"requested_high", saved.RequestedThresholds.High,
	)
}

// connectBus exports both bus services. It returns nil when the system bus
// cannot be reached. A failed export keeps the connection for UPower.
func connectBus(ctx context.Context, services *service.Service, log *logger.Logger) *dbus.Conn {
	conn, err := bus.ConnectSystem()
	if err != nil {
		var ce *bus.ConnectError
		if errors.As(err, &ce) {
			log.Warnw("system bus unavailable, running without it", "op", ce.Op, "err", ce.Err)
		} else {
			log.Warnw("system bus unavailable, running without it", "err", err)
		}
		return nil
	}

	busSrv := bus.NewServer(conn, services, log.Named("dbus"))
	if err := busSrv.Export(ctx); err != nil {
		log.Errorw("failed to export bus services", "err", err)
		return conn
	}
	go busSrv.Run(ctx)
	return conn
}

// runHTTPServer runs the HTTP server in a separate goroutine. The API is
// optional: a listen failure is logged and the daemon keeps running on the
// bus alone. The returned channel is closed when the server goroutine exits.
func runHTTPServer(srv *server.Server, listen string, handler http.Handler, log *logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Infow("http api listening", "listen", listen)
		if err := srv.Run(listen, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http_api_unavailable", "listen", listen, "err", err)
		}
	}()
	return done
}

// shutdown lets in-flight requests complete.
func shutdown(srv *server.Server, log *logger.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("server forced to shutdown", "err", err)
	}
}
