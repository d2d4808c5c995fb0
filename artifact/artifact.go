package artifact

// This file contains the per-session artifact store shared by the worker
// recorders (writers) and the aggregator (reader).

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/caseflow/caseflow/model"
)

const (
	// Extension of every session artifact.
	Extension = ".json"
	// ReadmeFile is the marker written into the shared directory.
	ReadmeFile = "README.txt"

	tmpSuffix = ".tmp"

	readmeText = "This directory is created by caseflow and can be safely deleted. " +
		"The directory will be automatically generated again when required."
)

// Entry is one file found in the shared directory.
type Entry struct {
	// Session id, the file name without extension
	Session string
	// Full path of the file
	Path string
	// Last modification of the file
	ModTime time.Time
	// Cases read from the file
	Cases []model.TestCase
	// Records of the file that were not valid test cases
	Invalid int
	// Err is set when the file could not be read or is not a JSON array
	Err error
}

// FileName returns the artifact file name for a session.
func FileName(sessionID string) string {
	return sessionID + Extension
}

// Reset removes dir and creates it again with the marker file. Failures are
// logged and the caller continues with whatever state is left.
func Reset(logger zerolog.Logger, fs afero.Fs, dir string) {
	if err := fs.RemoveAll(dir); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove temp directory")
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to create temp directory")
		return
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, ReadmeFile), []byte(readmeText), 0644); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to write temp directory readme")
	}
}

// Write stores cases as the artifact of sessionID in dir, replacing any
// earlier artifact of that session. The file is written next to the target
// and renamed so readers never see a partial artifact.
func Write(fs afero.Fs, dir, sessionID string, cases []model.TestCase) error {
	if sessionID == "" {
		return fmt.Errorf("session id is empty")
	}
	if strings.ContainsAny(sessionID, `/\`) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}

	data, err := json.Marshal(cases)
	if err != nil {
		return fmt.Errorf("failed to marshal test cases: %w", err)
	}

	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	path := filepath.Join(dir, FileName(sessionID))
	tmp := path + tmpSuffix
	if err := afero.WriteFile(fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// LoadEntries reads every regular file in dir except the marker, in name
// order. Files that are not a JSON array are returned with Err set. Records
// that are not valid test cases are dropped and counted in Invalid.
func LoadEntries(logger zerolog.Logger, fs afero.Fs, dir string) ([]Entry, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp directory: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})

	var entries []Entry
	for _, info := range infos {
		if info.IsDir() || info.Name() == ReadmeFile || strings.HasSuffix(info.Name(), tmpSuffix) {
			continue
		}
		path := filepath.Join(dir, info.Name())
		entry := Entry{
			Session: strings.TrimSuffix(info.Name(), Extension),
			Path:    path,
			ModTime: info.ModTime(),
		}
		entry.Cases, entry.Invalid, entry.Err = parseArtifact(logger, fs, path)
		if entry.Err != nil {
			logger.Debug().Err(entry.Err).Str("path", path).Msg("Skipping unreadable artifact")
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// parseArtifact parses a session artifact one record at a time, so a bad
// record does not hide the rest of the session.
func parseArtifact(logger zerolog.Logger, fs afero.Fs, path string) ([]model.TestCase, int, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, 0, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, err
	}

	cases := make([]model.TestCase, 0, len(records))
	invalid := 0
	for i, record := range records {
		var tc model.TestCase
		if err := json.Unmarshal(record, &tc); err != nil {
			logger.Warn().Err(err).Str("path", path).Int("record", i).Msg("Skipping invalid test case")
			invalid++
			continue
		}
		cases = append(cases, tc)
	}

	return cases, invalid, nil
}

// IsNotExist reports whether err means the directory is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
