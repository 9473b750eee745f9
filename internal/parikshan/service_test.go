package parikshan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathak/internal/account"
	"pathak/internal/parikshan"
	"pathak/internal/store/memory"
)

var (
	admin      = account.Actor{UID: "admin", Role: account.RoleAdmin}
	superAdmin = account.Actor{UID: "root", Role: account.RoleAdmin, SuperAdmin: true}
	scorer     = account.Actor{UID: "scorer", Role: account.RoleStudent, Scorer: true}
	student    = account.Actor{UID: "st-1", Role: account.RoleStudent}
)

type roster []account.Profile

func (r roster) Students(context.Context) ([]account.Profile, error) { return r, nil }

func (r roster) Profile(_ context.Context, uid string) (account.Profile, error) {
	for _, p := range r {
		if p.UID == uid {
			return p, nil
		}
	}
	if uid == admin.UID {
		return account.Profile{UID: uid, FullName: "Vikram", Role: account.RoleAdmin}, nil
	}
	return account.Profile{}, account.ErrUserNotFound
}

func setup() *parikshan.Service {
	students := roster{
		{UID: "st-1", FullName: "Chinmay", Role: account.RoleStudent},
		{UID: "st-2", FullName: "Aarti", Role: account.RoleStudent},
		{UID: "st-3", FullName: "Bhushan", Role: account.RoleStudent},
		{UID: "st-4", FullName: "Devika", Role: account.RoleStudent},
	}
	return parikshan.NewService(memory.NewParikshanRepository(memory.New()), students)
}

func intp(v int) *int { return &v }

func TestSaveFirstRoundLocksFields(t *testing.T) {
	svc := setup()
	ctx := context.Background()

	stored, locked, err := svc.SaveFirstRound(ctx, admin, "st-1", parikshan.FirstRoundInput{Dhol1: intp(5)})
	require.NoError(t, err)
	assert.Equal(t, []string{parikshan.FieldDhol1}, locked)
	assert.Equal(t, admin.UID, stored.SubmittedBy)

	stored, locked, err = svc.SaveFirstRound(ctx, scorer, "st-1", parikshan.FirstRoundInput{Dhol1: intp(9), Dhol2: intp(7)})
	require.NoError(t, err)
	assert.Equal(t, []string{parikshan.FieldDhol2}, locked)
	v, _ := stored.Dhol1.Value()
	assert.Equal(t, 5, v)

	_, locked, err = svc.SaveFirstRound(ctx, admin, "st-1", parikshan.FirstRoundInput{Dhol1: intp(1)})
	require.NoError(t, err)
	assert.Empty(t, locked)
}

func TestSaveFinalRoundLocksFields(t *testing.T) {
	svc := setup()
	ctx := context.Background()

	_, _, err := svc.SaveFinalRound(ctx, admin, "st-1", parikshan.FinalRoundInput{Dhol: intp(5)})
	require.NoError(t, err)
	stored, locked, err := svc.SaveFinalRound(ctx, admin, "st-1", parikshan.FinalRoundInput{Dhol: intp(9)})
	require.NoError(t, err)
	assert.Empty(t, locked)
	v, _ := stored.Dhol.Value()
	assert.Equal(t, 5, v)
}

func TestSaveRejectsBadInput(t *testing.T) {
	svc := setup()
	ctx := context.Background()

	_, _, err := svc.SaveFirstRound(ctx, student, "st-1", parikshan.FirstRoundInput{Dhol1: intp(5)})
	assert.ErrorIs(t, err, account.ErrForbidden)

	_, _, err = svc.SaveFirstRound(ctx, admin, "st-1", parikshan.FirstRoundInput{Dhwaj: intp(11)})
	assert.ErrorIs(t, err, parikshan.ErrScoreOutOfRange)

	_, _, err = svc.SaveFinalRound(ctx, admin, "st-1", parikshan.FinalRoundInput{Tasha: intp(-1)})
	assert.ErrorIs(t, err, parikshan.ErrScoreOutOfRange)
}

func TestSheetHidesLockedValuesFromScorers(t *testing.T) {
	svc := setup()
	ctx := context.Background()
	_, _, err := svc.SaveFirstRound(ctx, admin, "st-1", parikshan.FirstRoundInput{Dhol1: intp(6)})
	require.NoError(t, err)

	sheet, err := svc.Sheet(ctx, scorer, "st-1")
	require.NoError(t, err)
	assert.True(t, sheet.First[0].Locked)
	assert.Nil(t, sheet.First[0].Value)

	sheet, err = svc.Sheet(ctx, admin, "st-1")
	require.NoError(t, err)
	require.NotNil(t, sheet.First[0].Value)
	assert.Equal(t, 6, *sheet.First[0].Value)
	assert.Equal(t, parikshan.BadgePartial, sheet.Badge)

	_, err = svc.Sheet(ctx, student, "st-1")
	assert.ErrorIs(t, err, account.ErrForbidden)
}

func TestRosterOrder(t *testing.T) {
	svc := setup()
	ctx := context.Background()
	full := parikshan.FirstRoundInput{Dhol1: intp(5), Dhol2: intp(5), Maintenance: intp(5), Dhwaj: intp(5)}
	_, _, err := svc.SaveFirstRound(ctx, admin, "st-3", full)
	require.NoError(t, err)
	_, _, err = svc.SaveFirstRound(ctx, admin, "st-1", parikshan.FirstRoundInput{Dhol1: intp(5)})
	require.NoError(t, err)

	rows, err := svc.Roster(ctx, scorer)
	require.NoError(t, err)
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.FullName)
	}
	assert.Equal(t, []string{"Chinmay", "Aarti", "Devika", "Bhushan"}, names)
	assert.Equal(t, parikshan.BadgeScored, rows[3].Badge)
}

func TestReleaseGate(t *testing.T) {
	svc := setup()
	ctx := context.Background()
	_, _, err := svc.SaveFirstRound(ctx, admin, student.UID, parikshan.FirstRoundInput{Dhol1: intp(8), Dhol2: intp(6), Maintenance: intp(9)})
	require.NoError(t, err)
	_, _, err = svc.SaveFinalRound(ctx, admin, student.UID, parikshan.FinalRoundInput{Dhol: intp(7), Dhwaj: intp(9)})
	require.NoError(t, err)

	_, err = svc.MyScores(ctx, student)
	assert.ErrorIs(t, err, parikshan.ErrResultsHidden)

	assert.ErrorIs(t, svc.SetReleased(ctx, admin, true), account.ErrForbidden)
	require.NoError(t, svc.SetReleased(ctx, superAdmin, true))

	res, err := svc.MyScores(ctx, student)
	require.NoError(t, err)
	require.NotNil(t, res.Dhol)
	assert.InDelta(t, 7, *res.Dhol, 1e-9)
	assert.InDelta(t, 8, *res.FirstAverage, 1e-9)
	assert.InDelta(t, 8, *res.FinalAverage, 1e-9)
	assert.InDelta(t, 8, *res.Combined, 1e-9)
}

func TestSaveRequiresKnownStudent(t *testing.T) {
	svc := setup()
	ctx := context.Background()

	_, _, err := svc.SaveFirstRound(ctx, admin, "ghost", parikshan.FirstRoundInput{Dhol1: intp(5)})
	assert.ErrorIs(t, err, account.ErrUserNotFound)

	_, _, err = svc.SaveFinalRound(ctx, admin, admin.UID, parikshan.FinalRoundInput{Dhol: intp(5)})
	assert.ErrorIs(t, err, account.ErrUserNotFound)

	rows, err := svc.Roster(ctx, scorer)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, parikshan.BadgeNone, r.Badge, r.FullName)
	}
}
