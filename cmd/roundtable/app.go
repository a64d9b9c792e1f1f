package main

import (
	"errors"
	"fmt"

	"github.com/hupe1980/roundtable"
	"github.com/hupe1980/roundtable/config"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/mode"
	"github.com/hupe1980/roundtable/storage/sqlite"
)

// app bundles what the commands share; close releases the database.
type app struct {
	settings *config.Settings
	logger   *logging.RoundtableLogger
	rt       *roundtable.Roundtable
	close    func() error
}

func loadSettings(envFile string) (*config.Settings, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}

	return config.Load(files...)
}

func loadCatalog(s *config.Settings) (*mode.Catalog, error) {
	if s.ModesFile == "" {
		return mode.DefaultCatalog(), nil
	}

	return mode.LoadCatalog(s.ModesFile)
}

func newApp(envFile string) (*app, error) {
	settings, err := loadSettings(envFile)
	if err != nil {
		return nil, err
	}

	logger := settings.NewLogger().WithComponent("roundtable")

	catalog, err := loadCatalog(settings)
	if err != nil {
		return nil, err
	}

	llm, err := settings.NewModel()
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, logger: logger, close: func() error { return nil }}

	var store *sqlite.Store
	if settings.DatabasePath != "" {
		if store, err = sqlite.Open(settings.DatabasePath); err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.close = store.Close
	}

	a.rt = roundtable.New(llm, func(o *roundtable.Options) {
		o.Catalog = catalog
		o.TavilyAPIKey = settings.TavilyAPIKey
		o.MaxToolIterations = settings.MaxToolIterations
		o.MaxParallelAgents = settings.MaxParallelAgents
		o.Logger = logger
		if store != nil {
			o.SessionStore = store
			o.DocumentStore = store.Documents()
		}
	})

	return a, nil
}

func (a *app) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// joinClose returns err combined with the result of closing a.
func (a *app) joinClose(err error) error {
	return errors.Join(err, a.Close())
}
