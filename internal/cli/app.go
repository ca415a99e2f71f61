package cli

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/catalog"
	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/observability"
	"github.com/lexiqai/session-recorder/internal/output"
	"github.com/lexiqai/session-recorder/internal/statusapi"
	"github.com/lexiqai/session-recorder/internal/store"
)

// openRecords opens the record catalog, restoring journaled records when
// persistence is configured. The returned func closes the journal.
func openRecords(cfg *config.Config, logger zerolog.Logger) (*catalog.RecordStore, *store.Journal, func(), error) {
	if cfg.CatalogDBPath == "" {
		return catalog.NewRecordStore(nil, logger), nil, func() {}, nil
	}

	journal, err := store.Open(cfg.CatalogDBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	records := catalog.NewRecordStore(journal, logger)
	n, err := records.Restore()
	if err != nil {
		journal.Close()
		return nil, nil, nil, err
	}
	logger.Debug().
		Str("path", cfg.CatalogDBPath).
		Int("records", n).
		Msg("Record catalog restored")

	return records, journal, func() { journal.Close() }, nil
}

// statusServer builds the status API with readiness checks for the backend and
// the journal
func statusServer(cfg *config.Config, client *backend.Client, records *catalog.RecordStore, journal *store.Journal, logger zerolog.Logger) *statusapi.Server {
	checks := map[string]observability.HealthCheckFunc{}
	if client != nil {
		checks["backend"] = client.Ping
	}
	if journal != nil {
		checks["journal"] = func(ctx context.Context) (bool, error) {
			if err := journal.Ping(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return statusapi.NewServer(records, checks, cfg.MetricsEnabled, logger)
}

// followRecords prints every record change until the returned func is called
func followRecords(records *catalog.RecordStore, w io.Writer, onFirst func(catalog.Record)) func() {
	formatter := output.NewFormatter(w)
	feed, unsubscribe := records.Subscribe(64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		first := true
		for rec := range feed {
			if first && onFirst != nil {
				onFirst(rec)
			}
			first = false
			formatter.RecordUpdate(rec)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}
