package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvengine/internal/errs"
	"kvengine/internal/logdir"
	"kvengine/internal/record"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// S1: set/get round trip.
func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set("key1", "value1"))

	got, ok, err := s.Get("key1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value1", got)
}

// S2: missing key.
func TestGetMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

// S3: overwrite returns latest, including after reopen.
func TestOverwriteReturnsLatest(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set("k", "v1"))
	require.NoError(t, s.Set("k", "v2"))

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", got)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err = reopened.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", got)
}

// S4: remove then get; double remove fails KeyNotFound.
func TestRemoveThenGet(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Remove("k"))

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.Remove("k")
	require.Error(t, err)
	assert.Equal(t, errs.KeyNotFound, errs.Code(err))
}

// S5: persistence across reopen.
func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", got)

	got, ok, err = reopened.Get("b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", got)
}

// Property 5: remove of an absent key performs no disk write.
func TestRemoveAbsentKeyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	path := logdir.Path(dir, s.ActiveVersion())
	before, err := os.Stat(path)
	require.NoError(t, err)

	err = s.Remove("absent")
	require.Error(t, err)
	assert.Equal(t, errs.KeyNotFound, errs.Code(err))

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.Size(), after.Size())
}

// Property 6: the offset/length a set records in the index locate a valid
// record.
func TestSetOffsetLocatesValidRecord(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set("k", "v"))

	loc, ok := s.idx.Lookup("k")
	require.True(t, ok)

	path := logdir.Path(s.dir, loc.Version)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, loc.Offset+loc.Length, info.Size())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rec, err := record.DecodeExact(data[loc.Offset : loc.Offset+loc.Length])
	require.NoError(t, err)
	assert.Equal(t, record.KindSet, rec.Kind)
	assert.Equal(t, "k", rec.Key)
	assert.Equal(t, "v", rec.Value)
}

func TestOpenEmptyDirStartsAtVersionOne(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, logdir.Version(1), s.ActiveVersion())
}

func TestReopenAllocatesVersionAboveExisting(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	first := s.ActiveVersion()
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	assert.Greater(t, s2.ActiveVersion(), first)
}

func TestValueWithEmptyStringsRoundTrips(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set("", ""))
	got, ok, err := s.Get("")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", got)
}

func TestKeyNotFoundErrorIsDistinctFromOtherErrors(t *testing.T) {
	s := openTestStore(t)
	err := s.Remove("nope")
	require.Error(t, err)
	assert.Equal(t, errs.KeyNotFound, errs.Code(err))
}

func TestCustomCompactionThresholdIsHonored(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, WithCompactionThreshold(32))
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Set("k", "some longer value to accumulate stale bytes"))
	}

	// Compaction must have reset the counter at least once.
	assert.LessOrEqual(t, s.StaleBytes(), uint64(32))
}

func TestFilePermOptionIsApplied(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, WithFilePerm(0o600))
	require.NoError(t, err)
	defer s.Close()

	path := logdir.Path(dir, s.ActiveVersion())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDirIsCreatedIfMissing(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "nested", "store")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
