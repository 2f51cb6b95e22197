package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const (
	fileLockTimeout = 2 * time.Second
	fileLockRetry   = 25 * time.Millisecond
)

// FileKV は JSON ファイルに保存する KV です。CLI から利用します。
// 読み書きは "<path>.lock" のファイルロックで保護し、書き込みは一時ファイルからの rename で行います。
type FileKV struct {
	path   string
	logger *logrus.Logger
}

// NewFileKV は path に保存する FileKV を作成します。
func NewFileKV(path string, logger *logrus.Logger) *FileKV {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileKV{path: path, logger: logger}
}

// Path は保存先のファイルパスを返します。
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(key string) (string, bool) {
	var (
		value string
		found bool
	)
	err := f.withLock(false, func() error {
		values, err := f.read()
		if err != nil {
			return err
		}
		value, found = values[key]
		return nil
	})
	if err != nil {
		f.logger.WithError(err).WithField("key", key).Debug("Failed to read state file")
		return "", false
	}
	return value, found
}

func (f *FileKV) Set(key, value string) {
	err := f.withLock(true, func() error {
		values, err := f.read()
		if err != nil {
			// 壊れたファイルは作り直す
			f.logger.WithError(err).Warn("Discarding unreadable state file")
			values = map[string]string{}
		}
		values[key] = value
		return f.write(values)
	})
	if err != nil {
		f.logger.WithError(err).WithField("key", key).Warn("Failed to write state file")
	}
}

func (f *FileKV) Delete(keys ...string) {
	err := f.withLock(true, func() error {
		values, err := f.read()
		if err != nil {
			return err
		}
		for _, k := range keys {
			delete(values, k)
		}
		return f.write(values)
	})
	if err != nil {
		f.logger.WithError(err).WithField("keys", keys).Warn("Failed to delete keys from state file")
	}
}

func (f *FileKV) withLock(exclusive bool, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), fileLockTimeout)
	defer cancel()

	fileLock := flock.New(f.path + ".lock")
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fileLock.TryLockContext(ctx, fileLockRetry)
	} else {
		locked, err = fileLock.TryRLockContext(ctx, fileLockRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire state lock: %w", err)
	}
	if !locked {
		return errors.New("could not acquire state lock")
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			f.logger.WithError(err).Warn("Failed to release state lock")
		}
	}()

	return fn()
}

func (f *FileKV) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	return values, nil
}

func (f *FileKV) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
