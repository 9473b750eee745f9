package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathak/internal/attendance"
	"pathak/internal/parikshan"
	"pathak/internal/store"
)

// openTestDB connects to PATHAK_TEST_DATABASE_URL and applies the schema.
// Tests using it are skipped when the variable is unset.
func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	url := os.Getenv("PATHAK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PATHAK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(ctx, db.Client))
	return db
}

func TestCreateRecordOncePerPair(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttendanceRepository(db.Client)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	sess, err := repo.CreateSession(ctx, attendance.Session{
		ID:        uuid.NewString(),
		Title:     "Sunday practice",
		CreatedBy: "admin",
		Code:      "A72KQ9",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	studentID := uuid.NewString()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateRecord(ctx, attendance.Record{
				ID:        uuid.NewString(),
				SessionID: sess.ID,
				StudentID: studentID,
				MarkedAt:  now,
				Source:    attendance.SourceCode,
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, attendance.ErrAlreadyMarked)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	recs, err := repo.ListRecords(ctx, attendance.RecordFilter{SessionID: sess.ID, StudentID: studentID})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	has, err := repo.HasRecord(ctx, sess.ID, studentID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestLockFirstRoundWriteOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewParikshanRepository(db.Client)
	ctx := context.Background()
	studentID := uuid.NewString()
	now := time.Now().UTC()

	stored, err := repo.LockFirstRound(ctx, parikshan.FirstRound{
		StudentID: studentID, Dhol1: parikshan.Locked(5), SubmittedBy: "a1", UpdatedAt: now,
	})
	require.NoError(t, err)
	v, ok := stored.Dhol1.Value()
	require.True(t, ok)
	assert.Equal(t, 5, v)

	stored, err = repo.LockFirstRound(ctx, parikshan.FirstRound{
		StudentID: studentID, Dhol1: parikshan.Locked(9), Dhol2: parikshan.Locked(7), SubmittedBy: "a2", UpdatedAt: now,
	})
	require.NoError(t, err)
	v, _ = stored.Dhol1.Value()
	assert.Equal(t, 5, v)
	v, _ = stored.Dhol2.Value()
	assert.Equal(t, 7, v)

	// tasha only sticks once the student is marked as playing it
	stored, err = repo.LockFirstRound(ctx, parikshan.FirstRound{
		StudentID: studentID, Tasha: parikshan.Locked(4), UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.False(t, stored.Tasha.IsLocked())

	stored, err = repo.LockFirstRound(ctx, parikshan.FirstRound{
		StudentID: studentID, Tasha: parikshan.Locked(6), TashaApplicable: true, UpdatedAt: now,
	})
	require.NoError(t, err)
	v, _ = stored.Tasha.Value()
	assert.Equal(t, 6, v)
	assert.True(t, stored.TashaApplicable)
}

func TestLockFinalRoundWriteOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewParikshanRepository(db.Client)
	ctx := context.Background()
	studentID := uuid.NewString()

	_, err := repo.LockFinalRound(ctx, parikshan.FinalRound{StudentID: studentID, Dhol: parikshan.Locked(8), UpdatedAt: time.Now()})
	require.NoError(t, err)
	stored, err := repo.LockFinalRound(ctx, parikshan.FinalRound{StudentID: studentID, Dhol: parikshan.Locked(1), Dhwaj: parikshan.Locked(3), UpdatedAt: time.Now()})
	require.NoError(t, err)
	v, _ := stored.Dhol.Value()
	assert.Equal(t, 8, v)
	v, _ = stored.Dhwaj.Value()
	assert.Equal(t, 3, v)

	got, err := repo.FinalRound(ctx, studentID)
	require.NoError(t, err)
	assert.True(t, got.Exists)
	assert.Equal(t, stored.Dhol, got.Dhol)
}
