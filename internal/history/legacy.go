package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"flashback/internal/history/interfaces"
	"flashback/internal/models"
	"flashback/internal/providers"

	json "github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// Migrator imports the old flat history log into the keyed store. The legacy
// file is removed only after every record has been stored, so a failed run is
// simply repeated on the next start.
type Migrator struct {
	fs     afero.Fs
	store  interfaces.StoreInterface
	logger providers.Logger
}

func NewMigrator(fs afero.Fs, store interfaces.StoreInterface, logger providers.Logger) *Migrator {
	return &Migrator{fs: fs, store: store, logger: logger}
}

// Migrate returns the number of imported sessions. A missing file or an empty
// path is not an error.
func (m *Migrator) Migrate(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read legacy history: %w", err)
	}

	var records []*models.LegacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("failed to parse legacy history %s: %w", path, err)
	}

	migrated, err := importLegacy(ctx, m.store, records, m.logger)
	if err != nil {
		m.logger.Errorf(providers.TypeApp, "Legacy migration incomplete, %s kept: %s", path, err)
		return migrated, err
	}

	if err := m.fs.Remove(path); err != nil {
		return migrated, fmt.Errorf("failed to remove legacy history: %w", err)
	}
	m.logger.Infof(providers.TypeApp, "Migrated %d legacy sessions from %s", migrated, path)
	return migrated, nil
}

// importLegacy upserts every convertible record. Records that cannot be
// converted are logged and skipped; store failures are collected and returned.
func importLegacy(ctx context.Context, store interfaces.StoreInterface, records []*models.LegacyRecord, logger providers.Logger) (int, error) {
	var (
		migrated int
		errs     []error
	)
	ordered := make([]*models.LegacyRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			ordered = append(ordered, rec)
		}
	}
	// oldest first so bounded eviction keeps the newest entries
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	for _, rec := range ordered {
		session, err := rec.ToSession()
		if err != nil {
			logger.Warnf(providers.TypeApp, "Skip legacy record: %s", err)
			continue
		}
		if err := store.Upsert(ctx, session); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		migrated++
	}
	return migrated, errors.Join(errs...)
}
