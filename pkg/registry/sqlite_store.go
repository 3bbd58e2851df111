// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/luxfi/geth/common"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps artifacts and executions in a SQLite database shared by
// all networks.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	// single connection keeps writes serialized
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

type artifactRow struct {
	NetworkID       uint64 `db:"network_id"`
	Name            string `db:"name"`
	Address         string `db:"address"`
	Contract        string `db:"contract"`
	ABI             string `db:"abi"`
	DeployedAtBlock uint64 `db:"deployed_at_block"`
	ConstructorArgs string `db:"constructor_args"`
	ArgsHash        string `db:"args_hash"`
	TxHash          string `db:"tx_hash"`
	StepID          string `db:"step_id"`
	Imported        bool   `db:"imported"`
	Metadata        string `db:"metadata"`
	RecordedAt      string `db:"recorded_at"`
}

type executionRow struct {
	NetworkID  uint64 `db:"network_id"`
	StepID     string `db:"step_id"`
	Hash       string `db:"hash"`
	TxHash     string `db:"tx_hash"`
	Block      uint64 `db:"block"`
	RecordedAt string `db:"recorded_at"`
}

func toArtifactRow(networkID uint64, a Artifact) (artifactRow, error) {
	args, err := json.Marshal(a.ConstructorArgs)
	if err != nil {
		return artifactRow{}, err
	}
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return artifactRow{}, err
	}
	return artifactRow{
		NetworkID:       networkID,
		Name:            a.Name,
		Address:         a.Address.Hex(),
		Contract:        a.Contract,
		ABI:             string(a.ABI),
		DeployedAtBlock: a.DeployedAtBlock,
		ConstructorArgs: string(args),
		ArgsHash:        a.ArgsHash.Hex(),
		TxHash:          a.TxHash.Hex(),
		StepID:          a.StepID,
		Imported:        a.Imported,
		Metadata:        string(meta),
		RecordedAt:      a.RecordedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func (r artifactRow) artifact() (Artifact, error) {
	a := Artifact{
		Name:            r.Name,
		NetworkID:       r.NetworkID,
		Address:         common.HexToAddress(r.Address),
		Contract:        r.Contract,
		DeployedAtBlock: r.DeployedAtBlock,
		ArgsHash:        common.HexToHash(r.ArgsHash),
		TxHash:          common.HexToHash(r.TxHash),
		StepID:          r.StepID,
		Imported:        r.Imported,
	}
	if r.ABI != "" {
		a.ABI = json.RawMessage(r.ABI)
	}
	if err := json.Unmarshal([]byte(r.ConstructorArgs), &a.ConstructorArgs); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s constructor args: %w", ErrCorruptDocument, r.Name, err)
	}
	if err := json.Unmarshal([]byte(r.Metadata), &a.Metadata); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s metadata: %w", ErrCorruptDocument, r.Name, err)
	}
	recorded, err := time.Parse(time.RFC3339Nano, r.RecordedAt)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s recorded_at: %w", ErrCorruptDocument, r.Name, err)
	}
	a.RecordedAt = recorded
	return a, nil
}

func (s *SQLiteStore) Load(ctx context.Context, networkID uint64) (*Document, error) {
	doc := newDocument(networkID)

	var artifacts []artifactRow
	if err := s.db.SelectContext(ctx, &artifacts,
		`SELECT * FROM artifacts WHERE network_id = ? ORDER BY name`, networkID); err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}
	for _, row := range artifacts {
		a, err := row.artifact()
		if err != nil {
			return nil, err
		}
		doc.Artifacts[a.Name] = a
		if a.RecordedAt.After(doc.UpdatedAt) {
			doc.UpdatedAt = a.RecordedAt
		}
	}

	var executions []executionRow
	if err := s.db.SelectContext(ctx, &executions,
		`SELECT * FROM executions WHERE network_id = ? ORDER BY step_id`, networkID); err != nil {
		return nil, fmt.Errorf("failed to load executions: %w", err)
	}
	for _, row := range executions {
		recorded, err := time.Parse(time.RFC3339Nano, row.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: execution %s: %w", ErrCorruptDocument, row.StepID, err)
		}
		doc.Executions[row.StepID] = Execution{
			StepID:     row.StepID,
			Hash:       common.HexToHash(row.Hash),
			TxHash:     common.HexToHash(row.TxHash),
			Block:      row.Block,
			RecordedAt: recorded,
		}
	}
	return doc, nil
}

func (s *SQLiteStore) PutArtifact(ctx context.Context, networkID uint64, artifact Artifact) error {
	row, err := toArtifactRow(networkID, artifact)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO artifacts (network_id, name, address, contract, abi, deployed_at_block,
			constructor_args, args_hash, tx_hash, step_id, imported, metadata, recorded_at)
		VALUES (:network_id, :name, :address, :contract, :abi, :deployed_at_block,
			:constructor_args, :args_hash, :tx_hash, :step_id, :imported, :metadata, :recorded_at)
		ON CONFLICT (network_id, name) DO UPDATE SET
			address = excluded.address,
			contract = excluded.contract,
			abi = excluded.abi,
			deployed_at_block = excluded.deployed_at_block,
			constructor_args = excluded.constructor_args,
			args_hash = excluded.args_hash,
			tx_hash = excluded.tx_hash,
			step_id = excluded.step_id,
			imported = excluded.imported,
			metadata = excluded.metadata,
			recorded_at = excluded.recorded_at`, row)
	if err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", artifact.Name, err)
	}
	return nil
}

func (s *SQLiteStore) PutExecution(ctx context.Context, networkID uint64, execution Execution) error {
	row := executionRow{
		NetworkID:  networkID,
		StepID:     execution.StepID,
		Hash:       execution.Hash.Hex(),
		TxHash:     execution.TxHash.Hex(),
		Block:      execution.Block,
		RecordedAt: execution.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO executions (network_id, step_id, hash, tx_hash, block, recorded_at)
		VALUES (:network_id, :step_id, :hash, :tx_hash, :block, :recorded_at)
		ON CONFLICT (network_id, step_id) DO UPDATE SET
			hash = excluded.hash,
			tx_hash = excluded.tx_hash,
			block = excluded.block,
			recorded_at = excluded.recorded_at`, row)
	if err != nil {
		return fmt.Errorf("failed to store execution %s: %w", execution.StepID, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, networkID uint64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE network_id = ?`, networkID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM executions WHERE network_id = ?`, networkID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Networks(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT network_id FROM artifacts
		UNION
		SELECT network_id FROM executions
		ORDER BY network_id`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
