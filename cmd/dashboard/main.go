// File: cmd/dashboard/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/xltoken-dashboard/internal/auth"
	"github.com/smartdevs17/xltoken-dashboard/internal/client"
	"github.com/smartdevs17/xltoken-dashboard/internal/config"
	"github.com/smartdevs17/xltoken-dashboard/internal/connection"
	"github.com/smartdevs17/xltoken-dashboard/internal/logstore"
	"github.com/smartdevs17/xltoken-dashboard/internal/metrics"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/monitor"
	"github.com/smartdevs17/xltoken-dashboard/internal/notification"
	"github.com/smartdevs17/xltoken-dashboard/internal/processor"
	"github.com/smartdevs17/xltoken-dashboard/internal/realtime"
	"github.com/smartdevs17/xltoken-dashboard/internal/server"
	"github.com/smartdevs17/xltoken-dashboard/internal/storage"
	"github.com/smartdevs17/xltoken-dashboard/internal/tokens"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *logrus.Entry
	location *time.Location

	metrics *metrics.Manager
	storage storage.Storage
	session *auth.Session
	client  *client.Client
	tokens  *tokens.Board
	info    *tokens.InfoBoard

	store        *logstore.Store
	ticker       *realtime.TickerView
	socket       *connection.Manager
	feed         *realtime.Feed
	processor    *processor.LogProcessor
	notification *notification.NotificationManager
	monitor      *monitor.TransactionMonitor
	server       *server.HTTPServer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApplication creates the core every command needs: logging, storage,
// the session and the backend client.
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		cancel()
		return nil, err
	}
	app.location = loc
	models.SetTimestampLocation(loc)
	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initializeClient(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	level := logCfg.Level
	if viper.GetBool("debug") || app.config.App.Debug {
		level = "debug"
	} else if flagLevel := viper.GetString("log-level"); flagLevel != "" {
		level = flagLevel
	}

	rotate := utils.RotateOptions{
		MaxSize:    logCfg.MaxSize,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAge,
		Compress:   logCfg.Compress,
	}
	if err := utils.InitLogger(level, logCfg.Format, logCfg.Output, logCfg.File, rotate); err != nil {
		return err
	}

	app.logger = utils.ComponentLogger("app")
	app.logger.WithFields(logrus.Fields{
		"level":  level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Debug("Logger initialized")

	return nil
}

// initializeStorage opens the database and restores the session from it
func (app *Application) initializeStorage() error {
	raw, err := storage.NewStorage(&app.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	if err := raw.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}
	app.storage = storage.NewStorageWithMetrics(raw, app.metrics)

	if err := app.storage.Migrate(); err != nil {
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}

	var sessionStore auth.SessionStore = auth.NewMemoryStore()
	if app.config.Auth.PersistSession {
		sessionStore = app.storage
	}
	app.session, err = auth.NewSession(app.ctx, sessionStore)
	if err != nil {
		return err
	}

	app.logger.WithField("type", app.config.Storage.Type).Debug("Storage layer initialized")
	return nil
}

// initializeClient builds the REST client; a rejected token clears the session
func (app *Application) initializeClient() error {
	apiCfg := app.config.API

	var err error
	app.client, err = client.New(client.Config{
		BaseURL:    apiCfg.BaseURL,
		Timeout:    apiCfg.Timeout,
		AuthHeader: apiCfg.AuthHeader,
		UserAgent:  apiCfg.UserAgent,
		OnUnauthorized: func() {
			app.logger.Warn("Session rejected by backend, logging out")
			if err := app.session.Clear(context.WithoutCancel(app.ctx)); err != nil {
				app.logger.WithError(err).Error("Failed to clear session")
			}
		},
	}, app.session)
	if err != nil {
		return err
	}

	app.tokens = tokens.NewBoard(app.client)
	app.info = tokens.NewInfoBoard(app.client)
	return nil
}

// initializeRuntime wires the live transaction pipeline: store, ticker,
// processor, notifications, push feed and monitor.
func (app *Application) initializeRuntime() error {
	pm := app.metrics.GetPrometheusMetrics()

	app.store = logstore.New()
	app.ticker = realtime.NewTickerView(app.location, nil)
	app.ticker.SetPrice(app.config.Price(), app.config.Analytics.CurrencySymbol)
	app.store.Subscribe(app.ticker.Update)

	if err := app.initializeNotification(); err != nil {
		return fmt.Errorf("failed to initialize notification: %w", err)
	}

	app.processor = processor.NewLogProcessor(app.store, processor.NewProcessorConfig(app.config))
	app.processor.SetArchiver(app.storage)
	app.processor.SetRecorder(pm)
	if app.notification != nil {
		app.processor.SetNotifier(app.notification)
	}

	realtimeEnabled := app.config.Realtime.Enabled && !app.config.App.DemoMode
	if realtimeEnabled {
		if err := app.initializeRealtime(); err != nil {
			return fmt.Errorf("failed to initialize realtime feed: %w", err)
		}
	}

	app.monitor = monitor.NewTransactionMonitor(app.client, app.store, monitor.MonitorConfig{
		PollInterval:    app.config.Monitor.PollInterval,
		FetchTimeout:    app.config.Monitor.FetchTimeout,
		RealtimeEnabled: realtimeEnabled,
		DemoMode:        app.config.App.DemoMode,
		DemoEntries:     app.config.Monitor.DemoEntries,
		Location:        app.location,
	})
	app.monitor.SetArchiver(app.processor)
	app.monitor.SetRecorder(pm)
	if app.feed != nil {
		app.monitor.SetFeed(app.feed)
	}

	return nil
}

// initializeNotification creates the webhook forwarder when enabled
func (app *Application) initializeNotification() error {
	if !app.config.Notifications.Enabled || len(app.config.Notifications.Webhooks) == 0 {
		return nil
	}

	var err error
	app.notification, err = notification.NewNotificationManager(&app.config.Notifications, app.storage)
	if err != nil {
		return err
	}
	app.notification.SetRecorder(app.metrics.GetPrometheusMetrics())
	return nil
}

// initializeRealtime creates the socket transport and the log:new feed
func (app *Application) initializeRealtime() error {
	rt := app.config.Realtime

	var err error
	app.socket, err = connection.NewManager(connection.Config{
		URL:               app.config.RealtimeURL(),
		Path:              rt.Path,
		Namespace:         rt.Namespace,
		DialTimeout:       rt.DialTimeout,
		ReconnectDelay:    rt.ReconnectDelay,
		ReconnectDelayMax: rt.ReconnectDelayMax,
		ReconnectAttempts: rt.ReconnectAttempts,
	})
	if err != nil {
		return err
	}
	app.socket.SetRecorder(app.metrics.GetPrometheusMetrics())
	app.socket.OnStateChange(func(connected bool) {
		app.logger.WithField("connected", connected).Info("Realtime channel state changed")
	})

	app.feed = realtime.NewFeed(app.socket, rt.Event, app.processor.HandleEntry)
	return nil
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() error {
	serverCfg, err := server.NewServerConfig(app.config)
	if err != nil {
		return err
	}

	app.server, err = server.NewHTTPServer(serverCfg, server.Dependencies{
		Store:         app.store,
		Monitor:       app.monitor,
		Processor:     app.processor,
		Notifications: app.notification,
		Storage:       app.storage,
		Tokens:        app.tokens,
		Info:          app.info,
		Session:       app.session,
		Login:         app.login,
		Ticker:        app.ticker,
		Metrics:       app.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	return nil
}

// login exchanges credentials for a token without storing it
func (app *Application) login(ctx context.Context, username, password string) (string, error) {
	resp, err := app.client.Login(ctx, username, password)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Start starts the live pipeline and, when initialized, the HTTP server
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
		"demo_mode":   app.config.App.DemoMode,
	}).Info("Starting xltoken dashboard")

	if app.config.App.DemoMode {
		app.logger.Warn("Demo mode is enabled; transactions are generated locally")
	} else if !app.session.LoggedIn() {
		app.logger.Warn("No session token; run 'dashboard login' before transactions can load")
	}

	if app.notification != nil {
		if err := app.notification.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start notification manager: %w", err)
		}
	}

	if err := app.processor.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start log processor: %w", err)
	}

	if app.server != nil {
		if err := app.server.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	if err := app.monitor.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start transaction monitor: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"mode":    app.monitor.Mode(),
		"entries": app.store.Len(),
	}).Info("xltoken dashboard started")
	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.cancel()

	// Stop components in reverse order
	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.monitor != nil {
		if err := app.monitor.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop transaction monitor")
		}
	}

	if app.processor != nil {
		if err := app.processor.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop log processor")
		}
	}

	if app.notification != nil {
		if err := app.notification.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop notification manager")
		}
	}

	if app.storage != nil {
		if app.config.Storage.RetentionDays > 0 && app.store != nil {
			if err := app.storage.Cleanup(context.Background(), app.config.Storage.RetentionDays); err != nil {
				app.logger.WithError(err).Warn("Journal cleanup failed")
			}
		}
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Debug("xltoken dashboard stopped")
	return nil
}

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "dashboard",
	Short:         "xltoken admin dashboard",
	Long:          `Headless admin dashboard for the xltoken backend: live transaction analytics, token and announcement management over a JSON API and the terminal.`,
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

// loadConfig reads the config named by --config and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if viper.GetBool("demo") {
		cfg.App.DemoMode = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withApp runs fn against the core application and closes it afterwards
func withApp(fn func(app *Application) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := NewApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Stop()
	return fn(app)
}

// runDashboard is the main command: the live pipeline plus the HTTP API
func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	if err := app.initializeRuntime(); err != nil {
		app.Stop()
		return err
	}
	if err := app.initializeServer(); err != nil {
		app.Stop()
		return err
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived shutdown signal, stopping dashboard...")

	return app.Stop()
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")
	rootCmd.PersistentFlags().Bool("demo", false, "serve generated transactions instead of calling the backend")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("demo", rootCmd.PersistentFlags().Lookup("demo"))

	rootCmd.AddCommand(versionCmd, configCmd, testCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(tokensCmd, checkCmd, infoCmd)
	rootCmd.AddCommand(transactionsCmd, watchCmd, historyCmd)
	configCmd.AddCommand(validateConfigCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
