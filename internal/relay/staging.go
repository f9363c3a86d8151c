package relay

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// StagedFile is a video materialised on local ephemeral storage. It belongs to
// exactly one relay invocation and is removed by Release.
type StagedFile struct {
	Path    string
	RelayID string
	Size    int64

	once   sync.Once
	logger *slog.Logger
}

func newStagedFile(path, relayID string, size int64, logger *slog.Logger) *StagedFile {
	if logger == nil {
		logger = slog.Default()
	}
	return &StagedFile{Path: path, RelayID: relayID, Size: size, logger: logger}
}

// Release deletes the file from disk. Only the first call has an effect.
// A failed delete is logged and never returned.
func (s *StagedFile) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		err := os.Remove(s.Path)
		switch {
		case err == nil:
			s.logger.Debug("staged file removed", "relay_id", s.RelayID, "path", s.Path)
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Debug("staged file already gone", "relay_id", s.RelayID, "path", s.Path)
		default:
			s.logger.Error("failed to remove staged file", "relay_id", s.RelayID, "path", s.Path, "err", err)
		}
	})
}
