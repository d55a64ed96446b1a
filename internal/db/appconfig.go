package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ldi/sgr/pkg/models"
)

// ErrConfigConflict means a concurrent writer bumped the config version
// between read and write. Callers should re-read and retry or give up.
var ErrConfigConflict = errors.New("config version conflict")

const autoGenerateKey = "auto_generate"

// GetConfig returns a config value and its version. A missing key yields
// an empty value with version 0.
func (db *DB) GetConfig(ctx context.Context, key string) (string, int64, error) {
	row := db.QueryRowContext(ctx, `SELECT value, version FROM app_config WHERE key = ?`, key)

	var value string
	var version int64
	err := row.Scan(&value, &version)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, version, nil
}

// SetConfig writes a config value guarded by the version the caller read.
// Version 0 means the key is expected to be absent.
func (db *DB) SetConfig(ctx context.Context, key, value string, version int64) error {
	if version == 0 {
		res, err := db.ExecContext(ctx, `
			INSERT INTO app_config (key, value, version) VALUES (?, ?, 1)
			ON CONFLICT (key) DO NOTHING`, key, value)
		if err != nil {
			return fmt.Errorf("failed to insert config %s: %w", key, err)
		}
		// DO NOTHING hides the conflict; a dropped insert affects no rows.
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return ErrConfigConflict
		}
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE app_config SET value = ?, version = version + 1
		WHERE key = ? AND version = ?`, value, key, version)
	if err != nil {
		return fmt.Errorf("failed to update config %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrConfigConflict
	}
	return nil
}

// GetAutoGenerateConfig returns the schedule-trigger configuration, falling
// back to a disabled default when nothing has been stored yet.
func (db *DB) GetAutoGenerateConfig(ctx context.Context) (*models.AutoGenerateConfig, int64, error) {
	value, version, err := db.GetConfig(ctx, autoGenerateKey)
	if err != nil {
		return nil, 0, err
	}
	if value == "" {
		return &models.AutoGenerateConfig{DayOfMonth: 1}, 0, nil
	}

	var cfg models.AutoGenerateConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return nil, 0, fmt.Errorf("failed to parse auto-generate config: %w", err)
	}
	return &cfg, version, nil
}

func (db *DB) SaveAutoGenerateConfig(ctx context.Context, cfg *models.AutoGenerateConfig, version int64) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode auto-generate config: %w", err)
	}
	return db.SetConfig(ctx, autoGenerateKey, string(data), version)
}
