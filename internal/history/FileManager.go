package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"flashback/internal/history/interfaces"
	"flashback/internal/models"
	"flashback/internal/providers"

	json "github.com/goccy/go-json"
	"github.com/spf13/afero"
)

type FileManager struct {
	fs         afero.Fs
	store      interfaces.StoreInterface
	rateLog    interfaces.RateLogInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(fs afero.Fs, compressor interfaces.CompressorInterface, store interfaces.StoreInterface, rateLog interfaces.RateLogInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		fs:         fs,
		store:      store,
		rateLog:    rateLog,
		compressor: compressor,
		logger:     logger,
	}
}

func (f *FileManager) snapshot() *models.Snapshot {
	snap := &models.Snapshot{
		Version: models.SnapshotVersion,
		RateLog: f.rateLog.Entries(),
	}
	if s, ok := f.store.(interfaces.SessionSnapshotter); ok {
		snap.Sessions = s.Snapshot()
	}
	return snap
}

func (f *FileManager) SaveToFile(fileName string) error {
	jsonData, err := json.Marshal(f.snapshot())
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}
	return writeFileAtomic(f.fs, fileName, data)
}

// writeFileAtomic writes through a temp file in the target directory, syncs
// it, then renames it over the destination.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile := path + ".tmp"
	file, err := fs.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		fs.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		fs.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		fs.Remove(tmpFile)
		return err
	}

	return fs.Rename(tmpFile, path)
}

func (f *FileManager) LoadFromFile(fileName string) error {
	data, err := afero.ReadFile(f.fs, fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if errors.Is(err, ErrNotCompressed) {
		f.logger.Warnf(providers.TypeApp, "Snapshot %s is not compressed, reading it as plain JSON", fileName)
		decompressedData, err = data, nil
	}
	if err != nil {
		return err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(decompressedData, &snap); err == nil && snap.Version > 0 {
		if s, ok := f.store.(interfaces.SessionSnapshotter); ok && snap.Sessions != nil {
			s.PutData(snap.Sessions)
		}
		f.rateLog.PutEntries(snap.RateLog)
		return nil
	}

	// Old snapshots were the flat history log itself
	f.logger.Warnf(providers.TypeApp, "Snapshot %s is not in the keyed format, try to migrate from the flat log", fileName)
	var records []*models.LegacyRecord
	if err := json.Unmarshal(decompressedData, &records); err != nil {
		f.logger.Warnf(providers.TypeApp, "Migration failed")
		return err
	}
	migrated, err := importLegacy(context.Background(), f.store, records, f.logger)
	if err != nil {
		return err
	}
	f.logger.Warnf(providers.TypeApp, "Migration from flat log successful, %d sessions", migrated)
	return nil
}
