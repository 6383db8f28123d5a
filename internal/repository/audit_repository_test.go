package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-results-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewAuditRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnResult(sqlmock.NewResult(0, 1))
	userID, examID := "admin-1", "exam-1"
	entry := &models.AuditLog{UserID: &userID, Action: models.AuditActionProcess, Resource: "exam", ResourceID: &examID, Details: []byte(`{}`)}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnError(errors.New("boom"))
	err = repo.Create(context.Background(), &models.AuditLog{Action: models.AuditActionUnprocess, Resource: "exam"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create audit log")
	require.NoError(t, mock.ExpectationsWereMet())
}
