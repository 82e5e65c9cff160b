package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	return st
}

func strPtr(s string) *string { return &s }

func TestInitializeIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, st.Initialize(ctx))
	}
	_, err := st.Insert(ctx, &CallRecord{Name: "a", Email: "a@x", Phone: "+1", Status: "Positive"})
	require.NoError(t, err)
	require.NoError(t, st.Initialize(ctx))

	calls, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
}

func TestInsertThenListReturnsNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	first := &CallRecord{Name: "Ada", Email: "ada@example.com", Phone: "+15550001", Status: "Negative", Summary: strPtr("not interested")}
	id1, err := st.Insert(ctx, first)
	require.NoError(t, err)
	require.Equal(t, id1, first.ID)

	second := &CallRecord{Name: "Bob", Email: "bob@example.com", Phone: "+15550002", Status: "Follow-up",
		Summary: strPtr("Customer interested, schedule demo"), RecordingURL: strPtr("https://rec/2.wav")}
	id2, err := st.Insert(ctx, second)
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	calls, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	require.Equal(t, *second, calls[0])
	require.Equal(t, id1, calls[1].ID)
	require.Nil(t, calls[1].RecordingURL)
	require.Equal(t, "not interested", *calls[1].Summary)
}

func TestListAllEmpty(t *testing.T) {
	st := openTestStore(t)
	calls, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, calls)
}

func TestDuplicateFieldsAllowed(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	rec := CallRecord{Name: "Same", Email: "same@x", Phone: "+1", Status: "Positive"}
	a, b := rec, rec
	_, err := st.Insert(ctx, &a)
	require.NoError(t, err)
	_, err = st.Insert(ctx, &b)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestConcurrentInserts(t *testing.T) {
	for round := 0; round < 5; round++ {
		st := openTestStore(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 32)
		for i := 0; i < 16; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := st.Insert(ctx, &CallRecord{Name: "n", Email: "e", Phone: "p", Status: "Positive"})
				errs <- err
			}()
			go func() {
				defer wg.Done()
				_, err := st.ListAll(ctx)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		calls, err := st.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, calls, 16)
		for i := 1; i < len(calls); i++ {
			require.Greater(t, calls[i-1].ID, calls[i].ID)
		}
	}
}

func TestDSNSetsBusyTimeout(t *testing.T) {
	require.Equal(t, "calls.db?_pragma=busy_timeout(5000)", New("calls.db").dsn())
	require.Equal(t, "file:calls.db?mode=rwc&_pragma=busy_timeout(5000)", New("file:calls.db?mode=rwc").dsn())
}

func TestHealth(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Health(context.Background()))
}

func TestInsertNil(t *testing.T) {
	st := openTestStore(t)
	_, err := st.Insert(context.Background(), nil)
	require.Error(t, err)
}
