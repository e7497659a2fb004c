package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/domain"
)

// FileStats appends "<unix micros>\t<bytes>" lines to one .tab file per
// session under Dir.
type FileStats struct {
	Dir string

	mu    sync.Mutex
	files map[domain.SessionID]*os.File
}

func NewFileStats(dir string) (*FileStats, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stats dir: %w", err)
	}
	return &FileStats{Dir: dir, files: make(map[domain.SessionID]*os.File)}, nil
}

func StatsPath(dir string, target domain.TargetID, sid domain.SessionID) (string, error) {
	stem, err := domain.FileStem(target, sid)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stem+".tab"), nil
}

func (f *FileStats) Record(sid domain.SessionID, target domain.TargetID, at time.Time, bytes uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, ok := f.files[sid]
	if !ok {
		path, err := StatsPath(f.Dir, target, sid)
		if err != nil {
			return err
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open stats file: %w", err)
		}
		f.files[sid] = file
		log.Debug().Str("module", "app.stats").Str("sid", string(sid)).Str("path", file.Name()).Msg("stats file opened")
	}
	_, err := fmt.Fprintf(file, "%d\t%d\n", at.UnixMicro(), bytes)
	return err
}

// Release closes the file kept open for sid.
func (f *FileStats) Release(sid domain.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.files[sid]; ok {
		file.Close()
		delete(f.files, sid)
	}
}

func (f *FileStats) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for sid, file := range f.files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
		delete(f.files, sid)
	}
	return first
}
