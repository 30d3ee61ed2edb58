// Package engine implements the store engine: the orchestration layer that
// owns the active writer, the sealed-log readers, the index, and the
// stale-byte counter, and exposes Open/Get/Set/Remove/Compact/Close.
package engine

import (
	"log/slog"
	"os"

	"kvengine/internal/errs"
	"kvengine/internal/index"
	"kvengine/internal/logdir"
	"kvengine/internal/logio"
	"kvengine/internal/record"
	"kvengine/internal/recovery"
	"kvengine/internal/validate"
)

// DefaultCompactionThreshold is the production default stale-byte bound
// before an automatic compaction runs.
const DefaultCompactionThreshold = 1 << 20 // 1 MiB

// DefaultDirPerm and DefaultFilePerm are used unless overridden.
const (
	DefaultDirPerm  os.FileMode = 0o755
	DefaultFilePerm os.FileMode = 0o644
)

// Option configures a Store at Open time.
type Option func(*options)

type options struct {
	compactionThreshold uint64
	dirPerm             os.FileMode
	filePerm            os.FileMode
}

// WithCompactionThreshold overrides DefaultCompactionThreshold. Tests use
// a small value to exercise compaction without writing megabytes of
// fixtures.
func WithCompactionThreshold(bytes uint64) Option {
	return func(o *options) { o.compactionThreshold = bytes }
}

// WithDirPerm overrides the permission bits used when creating the store
// directory.
func WithDirPerm(perm os.FileMode) Option {
	return func(o *options) { o.dirPerm = perm }
}

// WithFilePerm overrides the permission bits used when creating log files.
func WithFilePerm(perm os.FileMode) Option {
	return func(o *options) { o.filePerm = perm }
}

// Store is a single open handle on a store directory. It assumes exclusive
// ownership of that directory and is not safe for concurrent use from
// multiple goroutines without external synchronization; callers that need
// concurrent access must serialize it themselves.
type Store struct {
	dir     string
	opts    options
	idx     *index.Index
	readers map[logdir.Version]*logio.Reader
	writer  *logio.Writer
	active  logdir.Version
	stale   uint64
	closed  bool
}

// Open opens or creates a store at path: it creates the directory if
// missing, enumerates existing logs, replays them to rebuild the index
// (ascending version order), allocates a fresh active version strictly
// greater than any existing one, and opens readers for every sealed log
// plus the new active log.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{
		compactionThreshold: DefaultCompactionThreshold,
		dirPerm:             DefaultDirPerm,
		filePerm:            DefaultFilePerm,
	}
	for _, fn := range opts {
		fn(&o)
	}

	if err := logdir.EnsureDir(path, o.dirPerm); err != nil {
		return nil, err
	}

	versions, err := logdir.Enumerate(path)
	if err != nil {
		return nil, err
	}

	idx := index.New()
	res, err := recovery.Load(path, versions, idx)
	if err != nil {
		return nil, err
	}

	readers := make(map[logdir.Version]*logio.Reader, len(versions)+1)
	for _, v := range versions {
		r, err := logio.OpenReader(logdir.Path(path, v))
		if err != nil {
			closeReaders(readers)
			return nil, err
		}
		readers[v] = r
	}

	active := logdir.NextAfter(versions)
	writer, err := logio.OpenWriter(logdir.Path(path, active), o.filePerm)
	if err != nil {
		closeReaders(readers)
		return nil, err
	}
	activeReader, err := logio.OpenReader(logdir.Path(path, active))
	if err != nil {
		writer.Close()
		closeReaders(readers)
		return nil, err
	}
	readers[active] = activeReader

	slog.Info("engine: store opened",
		"dir", path,
		"sealed_logs", len(versions),
		"active_version", active,
		"keys_recovered", idx.Len(),
		"stale_bytes", res.Stale)

	return &Store{
		dir:     path,
		opts:    o,
		idx:     idx,
		readers: readers,
		writer:  writer,
		active:  active,
		stale:   res.Stale,
	}, nil
}

func closeReaders(readers map[logdir.Version]*logio.Reader) {
	for _, r := range readers {
		r.Close()
	}
}

// Get looks up key and, if present, returns its latest value and true. If
// key has never been set or was most recently removed, it returns
// ("", false, nil). It never mutates on-disk state.
func (s *Store) Get(key string) (string, bool, error) {
	key, err := validate.Key("get", key)
	if err != nil {
		return "", false, err
	}

	loc, ok := s.idx.Lookup(key)
	if !ok {
		return "", false, nil
	}

	r, ok := s.readers[loc.Version]
	if !ok {
		return "", false, errs.IoErr("get", errNoReader(loc.Version))
	}

	data, err := r.ReadAt(loc.Offset, int(loc.Length))
	if err != nil {
		return "", false, err
	}

	rec, err := record.DecodeExact(data)
	if err != nil {
		return "", false, err
	}

	if rec.Kind != record.KindSet || rec.Key != key {
		return "", false, errs.UnexpectedCommandErr(key, "locator did not resolve to a matching Set record")
	}

	return rec.Value, true, nil
}

// Set encodes Set{key, value}, appends it to the active log, flushes, and
// updates the index. If the key previously had a locator, that locator's
// length is added to the stale-byte counter; if the counter then exceeds
// the compaction threshold, a compaction runs before Set returns.
func (s *Store) Set(key, value string) error {
	key, err := validate.Key("set", key)
	if err != nil {
		return err
	}
	value, err = validate.Value("set", value)
	if err != nil {
		return err
	}

	data, err := record.EncodeSet(key, value)
	if err != nil {
		return err
	}

	offset, err := s.writer.Append(data)
	if err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}

	loc := index.Locator{Version: s.active, Offset: offset, Length: int64(len(data))}
	prev, had := s.idx.Put(key, loc)
	if had {
		s.stale += uint64(prev.Length)
	}

	slog.Debug("engine: set",
		"key", key, "version", s.active, "offset", offset, "length", len(data))

	if s.stale > s.opts.compactionThreshold {
		return s.Compact()
	}
	return nil
}

// Remove deletes key. It fails with KeyNotFound and writes nothing if key
// is not in the index. Otherwise it appends a Remove record, flushes,
// deletes the index entry, and adds both the prior Set record's length
// and the Remove record's own length to the stale-byte counter.
func (s *Store) Remove(key string) error {
	key, err := validate.Key("remove", key)
	if err != nil {
		return err
	}

	prev, had := s.idx.Lookup(key)
	if !had {
		return errs.KeyNotFoundErr(key)
	}

	data, err := record.EncodeRemove(key)
	if err != nil {
		return err
	}

	_, err = s.writer.Append(data)
	if err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}

	s.idx.Delete(key)
	s.stale += uint64(prev.Length) + uint64(len(data))

	slog.Debug("engine: remove", "key", key)
	return nil
}

// Close flushes and releases every open file handle. Further use of the
// Store after Close is undefined.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, r := range s.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	slog.Info("engine: store closed", "dir", s.dir, "keys", s.idx.Len())
	return firstErr
}

// Len returns the number of live keys in the index.
func (s *Store) Len() int { return s.idx.Len() }

// StaleBytes returns the current value of the stale-byte counter.
func (s *Store) StaleBytes() uint64 { return s.stale }

// ActiveVersion returns the version currently being appended to.
func (s *Store) ActiveVersion() logdir.Version { return s.active }

type errNoReaderType struct{ version logdir.Version }

func (e errNoReaderType) Error() string {
	return "no reader open for version"
}

func errNoReader(v logdir.Version) error { return errNoReaderType{version: v} }
