package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clearconf/config-engine/internal/models"
)

const configurationColumns = `id, key, label, description, data_type, default_value, active, parent_config_id, validation_rules, parent_conditions, translations, created_at, updated_at`

// ConfigurationRepository persists configuration entries.
type ConfigurationRepository struct {
	db *sqlx.DB
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// Save inserts a new configuration row.
func (r *ConfigurationRepository) Save(ctx context.Context, row *models.ConfigurationRow) error {
	const query = `INSERT INTO configurations (id, key, label, description, data_type, default_value, active, parent_config_id, validation_rules, parent_conditions, translations, created_at, updated_at)
VALUES (:id, :key, :label, :description, :data_type, :default_value, :active, :parent_config_id, :validation_rules, :parent_conditions, :translations, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert configuration: %w", err)
	}
	return nil
}

// FindByID loads a configuration by its identifier.
func (r *ConfigurationRepository) FindByID(ctx context.Context, id string) (*models.ConfigurationRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM configurations WHERE id = $1`, configurationColumns)
	var row models.ConfigurationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByKey loads a configuration by its unique key (case-sensitive).
func (r *ConfigurationRepository) FindByKey(ctx context.Context, key string) (*models.ConfigurationRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM configurations WHERE key = $1`, configurationColumns)
	var row models.ConfigurationRow
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		return nil, err
	}
	return &row, nil
}

// FindAll returns a page of configurations in insertion order plus the
// total count across the whole set.
func (r *ConfigurationRepository) FindAll(ctx context.Context, limit, offset int) ([]models.ConfigurationRow, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM configurations`); err != nil {
		return nil, 0, fmt.Errorf("count configurations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM configurations ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`, configurationColumns)
	var rows []models.ConfigurationRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list configurations: %w", err)
	}
	return rows, total, nil
}

// ListAll returns every configuration in insertion order.
func (r *ConfigurationRepository) ListAll(ctx context.Context) ([]models.ConfigurationRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM configurations ORDER BY created_at ASC, id ASC`, configurationColumns)
	var rows []models.ConfigurationRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list all configurations: %w", err)
	}
	return rows, nil
}

// Update overwrites the stored row. The key column is deliberately absent
// from the SET list; it is immutable after creation.
func (r *ConfigurationRepository) Update(ctx context.Context, row *models.ConfigurationRow) error {
	const query = `UPDATE configurations
SET label = :label, description = :description, data_type = :data_type, default_value = :default_value,
    active = :active, parent_config_id = :parent_config_id, validation_rules = :validation_rules,
    parent_conditions = :parent_conditions, translations = :translations, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update configuration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update configuration rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the configuration and nulls out children's parent
// reference in the same transaction, keeping the forest free of dangling ids.
func (r *ConfigurationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete configuration tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE configurations SET parent_config_id = NULL WHERE parent_config_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("detach child configurations: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM configurations WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete configuration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete configuration rows affected: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete configuration tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, used to map key collisions racing past the pre-check.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
