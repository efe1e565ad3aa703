package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
)

const (
	testRecipient = "TFfagVe1aZpSfYaruY6xJfVPYZBuMj57FH"
	testServer    = "TGdD34RR3rZfUozoQLze9d4tzFbigL4JAY"
)

var noticeColumnNames = []string{
	"notice_id", "case_id", "case_number", "alert_token_id", "document_token_id",
	"recipient_address", "server_address", "notice_type", "issuing_agency", "ipfs_hash", "encryption_key",
	"transaction_hash", "block_number", "chain_timestamp", "accepted", "accepted_at", "acceptance_signature",
	"dismissed", "dismissed_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func noticeRow(rows *sqlmock.Rows, id string, alert int64, dismissed bool) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "case-1", "24-CV-001", alert, alert+1,
		testRecipient, testServer, "Summons", "County Court", "QmHash", "key",
		nil, nil, nil, false, nil, nil,
		dismissed, nil, now, now)
}

func TestNoticeRepositoryUpsertWithCase(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewNoticeRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cases")).
		WithArgs(sqlmock.AnyArg(), "24-CV-001", models.CaseStatusOpen, testServer, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("case-1"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notices")).
		WillReturnRows(noticeRow(sqlmock.NewRows(noticeColumnNames), "N1", 1, false))
	mock.ExpectCommit()

	alert := int64(1)
	saved, err := repo.UpsertWithCase(context.Background(), &models.Notice{
		NoticeID:         "N1",
		CaseNumber:       "24-CV-001",
		AlertTokenID:     &alert,
		RecipientAddress: testRecipient,
		ServerAddress:    testServer,
	})
	require.NoError(t, err)
	assert.Equal(t, "N1", saved.NoticeID)
	require.NotNil(t, saved.CaseID)
	assert.Equal(t, "case-1", *saved.CaseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeRepositoryUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewNoticeRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cases")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("case-1"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notices")).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.UpsertWithCase(context.Background(), &models.Notice{NoticeID: "N1", CaseNumber: "c", ServerAddress: testServer})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeRepositoryListByServer(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewNoticeRepository(db)
	rows := sqlmock.NewRows(noticeColumnNames)
	noticeRow(rows, "N2", 3, false)
	noticeRow(rows, "N1", 1, false)
	mock.ExpectQuery(`SELECT .* FROM notices WHERE lower\(server_address\) = lower\(\$1\) AND dismissed = FALSE ORDER BY created_at DESC LIMIT 50`).
		WithArgs(testServer).
		WillReturnRows(rows)

	notices, err := repo.ListByServer(context.Background(), testServer, false, 50)
	require.NoError(t, err)
	require.Len(t, notices, 2)
	assert.Equal(t, "N2", notices[0].NoticeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeRepositoryMarkAcceptedOnlyOnce(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewNoticeRepository(db)
	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notices SET accepted = TRUE")).
		WithArgs("N1", at, "sig-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notices SET accepted = TRUE")).
		WithArgs("N1", at, "sig-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.MarkAccepted(context.Background(), "N1", "sig-1", at)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.MarkAccepted(context.Background(), "N1", "sig-2", at)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeRepositorySetDismissedMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewNoticeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notices")).
		WithArgs("missing", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetDismissed(context.Background(), "missing", true, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewNoticeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (notice_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertIfAbsent(context.Background(), &models.Notice{NoticeID: "alert-5"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
