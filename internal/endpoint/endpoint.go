// Package endpoint reads the host:port a spawned job publishes in its
// notification file.
package endpoint

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"provisioner/internal/apperrors"
	"strings"
	"time"
)

// ReadEndpoint returns the first line of the file at path without its line
// ending. The value is not validated. With debug logging enabled the rest
// of the file is logged too.
func ReadEndpoint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NotFound("notification file", path)
		}
		return "", apperrors.IOFailure("endpoint.open", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", apperrors.IOFailure("endpoint.read", err)
	}
	if line == "" {
		return "", apperrors.IOFailure("endpoint.read", errors.New("notification file is empty"))
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

	logger := slog.Default().With("component", "endpoint", "path", path)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("Endpoint line read", "endpoint", line)
		drainRest(reader, logger)
	}
	return line, nil
}

// Await polls until the file at path exists, then reads it. It returns the
// context error if ctx ends first.
func Await(ctx context.Context, path string, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if exists(path) {
		return ReadEndpoint(path)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			if exists(path) {
				return ReadEndpoint(path)
			}
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func drainRest(reader *bufio.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		logger.Debug("Notification file line", "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("Draining notification file failed", "error", err)
	}
}
