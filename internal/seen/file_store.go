package seen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetry = 50 * time.Millisecond

// FileStore keeps the seen set in one JSON file. Writes go to a temp file in
// the same directory which is then renamed over the target, so a reader sees
// either the old or the new snapshot. A sibling ".lock" file guards against a
// second process touching the snapshot at the same time.
type FileStore struct {
	path      string
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore returns a store for path. retention <= 0 means DefaultRetention;
// now == nil means time.Now.
func NewFileStore(path string, retention time.Duration, now func() time.Time) *FileStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &FileStore{
		path:      path,
		retention: retention,
		now:       now,
		lock:      flock.New(path + ".lock"),
	}
}

func (st *FileStore) Path() string { return st.path }

func (st *FileStore) Load(ctx context.Context) (*Set, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return nil, err
	}
	ok, err := st.lock.TryRLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("seen: lock %s: %w", st.path, err)
	}
	if !ok {
		return nil, fmt.Errorf("seen: lock %s: not acquired", st.path)
	}
	defer st.lock.Unlock()

	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("seen: read %s: %w", st.path, err)
	}

	today := Today(st.now())
	set, format, err := Decode(data, today)
	if err != nil {
		// A broken snapshot must not stop scanning; start over empty.
		log.Printf("[seen] ignoring unreadable snapshot path=%q err=%v", st.path, err)
		return NewSet(), nil
	}

	loaded := set.Len()
	pruned := set.Prune(today, st.retention)
	log.Printf("[seen] loaded path=%q format=%s entries=%d pruned=%d", st.path, format, loaded-pruned, pruned)
	return set, nil
}

func (st *FileStore) Save(ctx context.Context, s *Set) error {
	b, err := Encode(s)
	if err != nil {
		return fmt.Errorf("seen: encode: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	ok, err := st.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("seen: lock %s: %w", st.path, err)
	}
	if !ok {
		return fmt.Errorf("seen: lock %s: not acquired", st.path)
	}
	defer st.lock.Unlock()

	return writeAtomic(st.path, b, 0o644)
}

func (st *FileStore) Close() error {
	return st.lock.Close()
}

func writeAtomic(path string, b []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
