package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/seen"
)

var fixedNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func day(s string) time.Time {
	d, _ := seen.ParseDate(s)
	return d
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "jobwatch.db"))
	require.NoError(t, err)
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	require.NoError(t, Migrate(db.Pool))

	var v int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, 1, v)
}

func TestSQLiteSeenStoreRoundTrip(t *testing.T) {
	st := NewSQLiteSeenStore(openTestDB(t), seen.DefaultRetention, clock)
	defer st.Close()
	ctx := context.Background()

	empty, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	set := seen.NewSet()
	set.MarkIfNew("/job/1", day("2026-10-19"))
	set.MarkIfNew("/job/2", day("2026-07-21"))
	set.MarkIfNew("/job/3", day("2026-07-20"))
	require.NoError(t, st.Save(ctx, set))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"/job/1": "2026-10-19",
		"/job/2": "2026-07-21",
	}, got.Encode())
}

func TestSQLiteSeenStoreSaveReplaces(t *testing.T) {
	st := NewSQLiteSeenStore(openTestDB(t), 0, clock)
	defer st.Close()
	ctx := context.Background()

	a := seen.NewSet()
	a.MarkIfNew("a", fixedNow)
	a.MarkIfNew("b", fixedNow)
	require.NoError(t, st.Save(ctx, a))

	b := seen.NewSet()
	b.MarkIfNew("c", fixedNow)
	require.NoError(t, st.Save(ctx, b))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.IDs())
}

func TestSQLiteSeenStoreBadDateBecomesToday(t *testing.T) {
	db := openTestDB(t)
	st := NewSQLiteSeenStore(db, 0, clock)
	defer st.Close()

	_, err := db.Pool.Exec(`INSERT INTO seen(id, first_seen) VALUES('x', 'someday');`)
	require.NoError(t, err)

	got, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "2026-10-19"}, got.Encode())
}

func TestRedisSeenStore(t *testing.T) {
	addr := os.Getenv("JOBWATCH_REDIS_ADDR")
	if addr == "" {
		t.Skip("JOBWATCH_REDIS_ADDR not set")
	}
	ctx := context.Background()

	rdb, err := DialRedis(ctx, addr)
	require.NoError(t, err)

	key := "jobwatch:test:" + t.Name()
	st := NewRedisSeenStore(rdb, key, 0, clock)
	defer st.Close()
	defer rdb.Del(ctx, key)

	set := seen.NewSet()
	set.MarkIfNew("/job/1", day("2026-10-01"))
	set.MarkIfNew("/job/old", day("2025-01-01"))
	require.NoError(t, st.Save(ctx, set))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/job/1": "2026-10-01"}, got.Encode())

	require.NoError(t, st.Save(ctx, seen.NewSet()))
	got, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}
