package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ambient-sync/internal/config"
	"ambient-sync/internal/database/influx"
	"ambient-sync/internal/database/postgres"
	"ambient-sync/internal/database/postgres/repositories"
	"ambient-sync/internal/interfaces"
	"ambient-sync/internal/logger"
	"ambient-sync/internal/mq"
	"ambient-sync/internal/scheduler"
	"ambient-sync/internal/services"
	"ambient-sync/internal/weather"
)

type Application struct {
	config *config.Config

	postgresDB *postgres.PostgresDB
	influxDB   *influx.InfluxDB

	transformerRepository *repositories.TransformerRepository
	readingRepository     *repositories.ReadingRepository

	weatherClient *weather.Client
	reportWriter  interfaces.IReportWriter
	mqttClient    *mq.Client
	topicManager  *mq.TopicManager

	syncService *services.SyncService
	scheduler   *scheduler.Scheduler

	shutdownChan chan os.Signal
	ctx          context.Context
	cancelFunc   context.CancelFunc
}

func main() {
	app := &Application{}

	if err := app.initialize(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	err := app.run()
	app.shutdown()

	if err != nil {
		log.Fatal().Err(err).Msg("Sync run failed")
	}
}

func (app *Application) initialize() error {
	var err error

	app.config, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	logger.NewLogger(app.config.Logger)
	log.Info().
		Str("component", "main").
		Str("version", app.config.Service.Version).
		Msg("Setting up service...")

	app.ctx, app.cancelFunc = context.WithCancel(context.Background())
	app.shutdownChan = make(chan os.Signal, 1)
	signal.Notify(app.shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-app.shutdownChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		app.cancelFunc()
	}()

	if err := app.initializeDatabases(); err != nil {
		return fmt.Errorf("error while initializing databases: %w", err)
	}

	if err := app.initializeMQTT(); err != nil {
		return fmt.Errorf("error while initializing MQTT: %w", err)
	}

	if err := app.initializeRepositories(); err != nil {
		return fmt.Errorf("error while initializing repositories: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return fmt.Errorf("error while initializing services: %w", err)
	}

	log.Info().Msg("Successfully initialized application")
	return nil
}

func (app *Application) initializeDatabases() error {
	var err error

	app.postgresDB, err = postgres.NewConnection(app.config.Store)
	if err != nil {
		return fmt.Errorf("could not connect to PostgreSQL: %w", err)
	}

	if app.config.InfluxDB.Enabled() {
		app.influxDB, err = influx.NewConnection(&app.config.InfluxDB)
		if err != nil {
			return fmt.Errorf("could not connect to InfluxDB: %w", err)
		}

		app.reportWriter = influx.NewReportWriter(
			app.influxDB.GetWriteAPI(),
			logger.GetLogger("report-writer"),
		)
	} else {
		log.Info().Msg("InfluxDB reporting disabled")
	}

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized databases")
	return nil
}

func (app *Application) initializeMQTT() error {
	if !app.config.MQTT.Enabled() {
		log.Info().Msg("MQTT reporting disabled")
		return nil
	}

	app.topicManager = mq.NewTopicManager(app.config.MQTT.BaseTopic, logger.GetLogger("topic-manager"))

	var err error
	app.mqttClient, err = mq.NewClient(app.config.MQTT, logger.GetLogger("mq-client"))
	if err != nil {
		return fmt.Errorf("could not create MQTT client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(app.ctx, 30*time.Second)
	defer cancel()

	if err := app.mqttClient.Connect(connectCtx); err != nil {
		return fmt.Errorf("could not connect to MQTT broker: %w", err)
	}

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized MQTT client")

	return nil
}

func (app *Application) initializeRepositories() error {
	db := app.postgresDB.GetDB()

	app.transformerRepository = repositories.NewTransformerRepository(db)
	app.readingRepository = repositories.NewReadingRepository(db)

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized repositories")
	return nil
}

func (app *Application) initializeServices() error {
	app.weatherClient = weather.NewClient(app.config.Weather)

	// A nil *mq.Client must stay a nil interface inside the service.
	var mqClient interfaces.IMqClient
	if app.mqttClient != nil {
		mqClient = app.mqttClient
	}

	app.syncService = services.NewSyncService(
		app.transformerRepository,
		app.readingRepository,
		app.weatherClient,
		app.reportWriter,
		mqClient,
		app.topicManager,
		logger.GetLogger("sync-service"),
	)

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized services")
	return nil
}

func (app *Application) run() error {
	if app.config.Service.Interval > 0 {
		return app.runScheduled()
	}

	_, err := app.syncService.Run(app.ctx)
	return err
}

func (app *Application) runScheduled() error {
	app.scheduler = scheduler.New(app.syncService, app.config.Service.Interval, logger.GetLogger("scheduler"))

	if err := app.scheduler.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	<-app.ctx.Done()

	log.Info().Msg("context cancelled, shutting down application")
	return nil
}

func (app *Application) shutdown() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.mqttClient != nil {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		app.mqttClient.Disconnect(disconnectCtx)
		cancel()
	}

	if app.influxDB != nil {
		app.influxDB.Close()
	}

	if app.postgresDB != nil {
		if err := app.postgresDB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing PostgreSQL connection")
		}
	}

	app.cancelFunc()
}
