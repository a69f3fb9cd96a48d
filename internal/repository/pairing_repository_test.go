package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
)

func TestPairingRepo_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPairingRepo(db)

	p := model.Pairing{
		ElderID:      "elder-1",
		GuardianID:   "grd_1",
		GuardianName: "Dana",
		PairedAt:     time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO pairings`).
		WithArgs(p.ElderID, p.GuardianID, p.GuardianName, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(t.Context(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepo_Delete_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPairingRepo(db)

	mock.ExpectExec(`DELETE FROM pairings`).
		WithArgs("elder-1", "grd_1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Delete(t.Context(), "elder-1", "grd_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepo_GuardianIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPairingRepo(db)

	rows := sqlmock.NewRows([]string{"guardian_id"}).
		AddRow("grd_1").
		AddRow("grd_2")
	mock.ExpectQuery(`SELECT guardian_id FROM pairings`).
		WithArgs("elder-1").
		WillReturnRows(rows)

	ids, err := repo.GuardianIDs(t.Context(), "elder-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"grd_1", "grd_2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepo_ListByElder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPairingRepo(db)

	pairedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"elder_id", "guardian_id", "guardian_name", "paired_at"}).
		AddRow("elder-1", "grd_1", "Dana", pairedAt).
		AddRow("elder-1", "grd_2", "Sam", pairedAt.Add(time.Hour))
	mock.ExpectQuery(`SELECT elder_id, guardian_id, guardian_name, paired_at`).
		WithArgs("elder-1").
		WillReturnRows(rows)

	out, err := repo.ListByElder(t.Context(), "elder-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "grd_1", out[0].GuardianID)
	assert.Equal(t, "Sam", out[1].GuardianName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepo_ListByGuardian(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPairingRepo(db)

	pairedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"elder_id", "guardian_id", "guardian_name", "paired_at"}).
		AddRow("elder-1", "grd_1", "Dana", pairedAt)
	mock.ExpectQuery(`SELECT elder_id, guardian_id, guardian_name, paired_at`).
		WithArgs("grd_1").
		WillReturnRows(rows)

	out, err := repo.ListByGuardian(t.Context(), "grd_1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "elder-1", out[0].ElderID)
	assert.Equal(t, "Dana", out[0].GuardianName)
	assert.Equal(t, pairedAt, out[0].PairedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
