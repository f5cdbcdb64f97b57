package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearconf/config-engine/internal/models"
)

func TestAuditRepositoryCreateAssignsIdentity(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	resourceID := "cfg-1"
	log := &models.AuditLog{
		Action:        models.AuditActionConfigCreate,
		Resource:      "configuration",
		ResourceID:    &resourceID,
		NewValues:     []byte(`{"key":"MAX_RETRIES"}`),
		CorrelationID: "corr-1",
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_logs`)).
		WithArgs(sqlmock.AnyArg(), log.Action, log.Resource, resourceID, nil, log.NewValues, log.CorrelationID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateAuditLog(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByResourceID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	resourceID := "cfg-1"
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "action", "resource", "resource_id", "old_values", "new_values", "correlation_id", "created_at"}).
		AddRow("a2", models.AuditActionConfigUpdate, "configuration", resourceID, nil, []byte(`{"label":"New"}`), "corr-2", now.Add(time.Minute)).
		AddRow("a1", models.AuditActionConfigCreate, "configuration", resourceID, nil, []byte(`{}`), "corr-1", now)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_logs WHERE resource_id = $1 ORDER BY created_at DESC LIMIT $2`)).
		WithArgs(resourceID, 50).
		WillReturnRows(rows)

	logs, err := repo.ListByResourceID(context.Background(), resourceID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionConfigUpdate, logs[0].Action)
	assert.Equal(t, models.AuditActionConfigCreate, logs[1].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
