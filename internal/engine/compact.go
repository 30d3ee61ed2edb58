package engine

import (
	"log/slog"

	"kvengine/internal/errs"
	"kvengine/internal/index"
	"kvengine/internal/logdir"
	"kvengine/internal/logio"
)

// Compact rewrites every live record into a fresh log and deletes every
// log strictly older than the compaction, reclaiming the space occupied
// by superseded records. It is triggered automatically
// from Set when the stale-byte counter exceeds the compaction threshold,
// and may also be called directly.
func (s *Store) Compact() error {
	oldActive := s.active
	compactVersion := oldActive + 1
	newActiveVersion := oldActive + 2

	compactWriter, err := logio.OpenWriter(logdir.Path(s.dir, compactVersion), s.opts.filePerm)
	if err != nil {
		return err
	}
	compactReader, err := logio.OpenReader(logdir.Path(s.dir, compactVersion))
	if err != nil {
		compactWriter.Close()
		return err
	}

	newActiveWriter, err := logio.OpenWriter(logdir.Path(s.dir, newActiveVersion), s.opts.filePerm)
	if err != nil {
		compactWriter.Close()
		compactReader.Close()
		return err
	}
	newActiveReader, err := logio.OpenReader(logdir.Path(s.dir, newActiveVersion))
	if err != nil {
		compactWriter.Close()
		compactReader.Close()
		newActiveWriter.Close()
		return err
	}

	before := s.idx.Snapshot()
	updates := make(map[string]index.Locator, len(before))
	for key, loc := range before {
		r, ok := s.readers[loc.Version]
		if !ok {
			compactWriter.Close()
			compactReader.Close()
			newActiveWriter.Close()
			newActiveReader.Close()
			return errs.IoErr("compact", errNoReader(loc.Version))
		}

		data, err := r.ReadAt(loc.Offset, int(loc.Length))
		if err != nil {
			compactWriter.Close()
			compactReader.Close()
			newActiveWriter.Close()
			newActiveReader.Close()
			return err
		}

		newOffset, err := compactWriter.Append(data)
		if err != nil {
			compactWriter.Close()
			compactReader.Close()
			newActiveWriter.Close()
			newActiveReader.Close()
			return err
		}

		updates[key] = index.Locator{Version: compactVersion, Offset: newOffset, Length: loc.Length}
	}

	if err := compactWriter.Flush(); err != nil {
		compactWriter.Close()
		compactReader.Close()
		newActiveWriter.Close()
		newActiveReader.Close()
		return err
	}

	for key, loc := range updates {
		s.idx.Put(key, loc)
	}

	// Close and delete every version strictly older than compactVersion —
	// this includes every previously sealed log and the old active log.
	for v, r := range s.readers {
		if v >= compactVersion {
			continue
		}
		r.Close()
		delete(s.readers, v)
		if err := logdir.Remove(s.dir, v); err != nil {
			slog.Warn("engine: compact: failed to remove superseded log", "version", v, "error", err)
		}
	}
	if err := s.writer.Close(); err != nil {
		slog.Warn("engine: compact: failed to close old active writer", "version", oldActive, "error", err)
	}

	s.readers[compactVersion] = compactReader
	s.readers[newActiveVersion] = newActiveReader
	s.writer = newActiveWriter
	s.active = newActiveVersion
	s.stale = 0

	slog.Info("engine: compaction complete",
		"dir", s.dir,
		"compact_version", compactVersion,
		"active_version", newActiveVersion,
		"live_keys", len(updates))

	return nil
}
