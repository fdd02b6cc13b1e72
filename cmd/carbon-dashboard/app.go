package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/config"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
	"github.com/ecoledger/carbon-dashboard/internal/metrics"
	"github.com/ecoledger/carbon-dashboard/internal/publish"
	"github.com/ecoledger/carbon-dashboard/internal/report"
	"github.com/ecoledger/carbon-dashboard/internal/storage"
)

// app is the wired set of services shared by the commands that touch stored
// data.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	db        *sql.DB
	client    *crudapi.Client
	metrics   *metrics.Metrics
	publisher publish.Publisher
	records   *consumption.Service
	schedules *report.ScheduleStore
}

// loadFactorTable returns the configured factor table, or the defaults.
func loadFactorTable(cfg config.Config) (*carbon.FactorTable, error) {
	if cfg.FactorsFile == "" {
		return carbon.DefaultFactorTable(), nil
	}
	return carbon.LoadFactorTable(cfg.FactorsFile)
}

// openApp opens storage and builds the record service. With withPublisher
// set and a broker configured, saved records are published over MQTT.
func openApp(cfg config.Config, logger zerolog.Logger, withPublisher bool) (*app, error) {
	table, err := loadFactorTable(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(), publisher: publish.NopPublisher{}}
	a.db, err = storage.Open(cfg.Store.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	a.schedules = report.NewScheduleStore(a.db)

	var store consumption.Store = consumption.NewSQLiteStore(a.db)
	if cfg.Store.Driver == config.DriverRemote {
		a.client = crudapi.NewClient(crudapi.Config{
			BaseURL:    cfg.Remote.BaseURL,
			Token:      cfg.Remote.Token,
			HTTPClient: &http.Client{},
			Pipeline: crudapi.PipelineConfig{
				Timeout:   cfg.Remote.Timeout,
				Retry:     crudapi.RetryConfig{MaxAttempts: cfg.Remote.MaxRetries + 1},
				RequestsPerSecond: cfg.Remote.RequestsPerSecond,
				Metrics:   a.metrics,
			},
		}, logger.With().Str("component", "crudapi").Logger())
		store = consumption.NewRemoteStore(a.client)
	}

	if withPublisher && cfg.MQTT.Broker != "" {
		pub, err := publish.NewMQTTPublisher(publish.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, logger.With().Str("component", "mqtt").Logger())
		if err != nil {
			_ = a.db.Close()
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		a.publisher = pub
	}

	a.records = consumption.NewService(store, table, a.publisher, a.metrics, logger)
	logger.Debug().Fields(cfg.LogFields()).Msg("configuration loaded")
	return a, nil
}

// sender returns the report sender: the remote delivery API when the remote
// driver is configured, otherwise a log sender writing to the output dir.
func (a *app) sender() report.Sender {
	if a.client != nil {
		return report.NewRemoteSender(a.client)
	}
	return &report.LogSender{
		Dir:    a.cfg.Reports.OutputDir,
		Logger: a.logger.With().Str("component", "reports").Logger(),
	}
}

func (a *app) Close() error {
	return errors.Join(a.publisher.Close(), a.db.Close())
}
