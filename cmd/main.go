package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"sunssactor/internal/device"
	"sunssactor/internal/exposure"
	"sunssactor/internal/gen2"
	"sunssactor/internal/handlers"
	"sunssactor/internal/logger"
	"sunssactor/internal/repository"
	"sunssactor/internal/server"
	"sunssactor/internal/service"
	"sunssactor/internal/tracker"
)

func main() {
	// load config.yml first so the log level can come from it
	cfgErr := loadConfig()
	log := logger.Get(viper.GetString("log_level"))
	if cfgErr != nil {
		log.Fatalw("error reading config", "err", cfgErr)
	}

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)

	stage := device.New(viper.GetString("sunss_pi.host"), viper.GetInt("sunss_pi.port"), log)
	iic := exposure.New(viper.GetString("iic.base_url"), viper.GetInt("iic.exptime_sec"), log)
	sunssSvc := service.NewSunssService(stage, iic, log)

	audit := tracker.NewAuditLog(viper.GetString("audit.dir"))
	trk, err := tracker.New(startupStrategy(repos, log), sunssSvc, audit, repos.StateRepo, repos.EventRepo, log)
	if err != nil {
		log.Fatalw("failed to build tracker", "err", err)
	}
	sunssSvc.BindTracker(trk)

	services := service.NewService(repos, sunssSvc)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// consume the telescope status stream
	statusFeed := gen2.New(gen2.Config{
		StatusURL: viper.GetString("gen2.status_url"),
		StreamURL: viper.GetString("gen2.stream_url"),
		Username:  viper.GetString("gen2.username"),
		Password:  viper.GetString("gen2.password"),
		QueueSize: viper.GetInt("tracker.queue_size"),
	}, log)
	go statusFeed.Run(ctx)
	go trk.Run(ctx, statusFeed.Updates())

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// startupStrategy restores the persisted strategy so a restart picks up
// where the actor left off; the config value is the fallback.
func startupStrategy(repos *repository.Repository, log *logger.Logger) string {
	name := viper.GetString("tracker.strategy")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := repos.StateRepo.Load(ctx)
	if err != nil {
		log.Warnw("could not restore strategy; using config", "err", err, "strategy", name)
		return name
	}
	if st.Strategy != "" {
		log.Infow("restored strategy", "strategy", st.Strategy)
		return st.Strategy
	}
	return name
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "sunss.db")
		dbPath = "sunss.db"
	}
	return repository.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop the status consumer and tracker
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
