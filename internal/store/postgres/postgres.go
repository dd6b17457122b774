// Package postgres implements store.Store on PostgreSQL via lib/pq, with
// schema migrations applied on startup through golang-migrate.
package postgres

import (
	"database/sql"
	"fmt"

	"convoserve/internal/config"
	"convoserve/internal/logger"
	"convoserve/internal/store"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

// PostgresStore implements the store.Store interface.
type PostgresStore struct {
	conn *sql.DB
}

// NewPostgresStore opens a connection, verifies it, and applies pending
// migrations.
func NewPostgresStore(dbConfig config.DatabaseConfig) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", dbConfig.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	logger.Log.Info("Connected to PostgreSQL")

	s := &PostgresStore{conn: conn}

	if err = s.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RunMigrations applies pending schema migrations.
func (p *PostgresStore) RunMigrations() error {
	driver, err := migratepg.WithInstance(p.conn, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("error creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("error creating migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("error running migrations: %w", err)
	}

	logger.Log.Info("Database migrations applied")
	return nil
}
