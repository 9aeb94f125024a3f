package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neuron_trainer/neuron_controllers"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type serverConfig struct {
	ListenAddr   string
	SettingsFile string
	NtpServer    string
	DbUser       string
	DbPassword   string
	DbHost       string
	DbPort       string
	DbName       string
	DbTable      string
}

func serverConfigFromEnv() serverConfig {
	return serverConfig{
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),
		SettingsFile: getEnv("SETTINGS_FILE", "training_settings.json"),
		NtpServer:    os.Getenv("NTP_SERVER"),
		DbUser:       os.Getenv("DB_USER"),
		DbPassword:   os.Getenv("DB_PASSWORD"),
		DbHost:       os.Getenv("DB_HOST"),
		DbPort:       getEnv("DB_PORT", "3306"),
		DbName:       os.Getenv("DB_NAME"),
		DbTable:      getEnv("DB_TABLE", neuron_controllers.DefaultRunTable),
	}
}

func serveCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the training control server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), serverConfigFromEnv(), logger)
		},
	}
}

// loadSettings falls back to the defaults when the settings file does not exist.
func loadSettings(filename string, logger *zap.Logger) (neuron_controllers.TrainingSettings, error) {
	settings, err := neuron_controllers.LoadTrainingSettings(filename)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			logger.Warn("settings file not found, using defaults", zap.String("file", filename))
			return neuron_controllers.DefaultTrainingSettings(), nil
		}
		return neuron_controllers.TrainingSettings{}, err
	}
	return *settings, nil
}

func runServer(ctx context.Context, config serverConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	welcomeMessage := " -  -  Neuron Control Server  -  - "
	fmt.Println(welcomeMessage)

	settings, err := loadSettings(config.SettingsFile, logger)
	if err != nil {
		return err
	}
	seed := settings.ResolveSeed()

	var store neuron_controllers.RunStore
	var dbController *neuron_controllers.DatabaseController
	if config.DbHost != "" {
		dbController, err = neuron_controllers.NewDatabaseController(
			config.DbUser,
			config.DbPassword,
			config.DbHost,
			config.DbPort,
			config.DbName,
			config.DbTable,
			logger)
		if err != nil {
			return err
		}
		defer dbController.CloseDb()

		if err := dbController.EnsureSchema(ctx); err != nil {
			return err
		}
		store = dbController
	}

	controller, err := neuron_controllers.NewTrainingControllerFromSettings(settings, seed, logger)
	if err != nil {
		return err
	}
	broadcaster := neuron_controllers.NewStateBroadcaster()
	session := neuron_controllers.NewSessionController(store, config.NtpServer, seed, logger)
	controller.AddObserver(broadcaster)
	controller.AddObserver(session)
	if !session.HasStore() {
		logger.Info("DB_HOST not set, runs are kept in memory only")
	}

	server := &controlServer{
		controller:   controller,
		broadcaster:  broadcaster,
		session:      session,
		dbController: dbController,
		logger:       logger,
	}
	runner := neuron_controllers.NewBurstRunner(controller, settings.BurstDelay(), logger)

	g, gctx := errgroup.WithContext(ctx)
	// Request contexts derive from gctx so open event streams end with the server.
	httpServer := &http.Server{
		Addr:        config.ListenAddr,
		Handler:     server.router(),
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("control server listening",
			zap.String("addr", config.ListenAddr),
			zap.Int64("seed", seed),
			zap.String("dataset", controller.Dataset().Name()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "control server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("control server stopped", zap.Int("epoch", controller.Epoch()))
	return err
}
