package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/configuration"
	_ "github.com/lib/pq"
)

// PostgresStorage owns the record of truth for upload records. One instance
// per process; the pool is opened at startup and drained at shutdown.
type PostgresStorage struct {
	Db *sql.DB
}

var postgresInstance *PostgresStorage

// InitializePostgres sets up the process-scoped PostgreSQL pool.
func InitializePostgres(cfg configuration.DatabaseConfig) error {
	pg := &PostgresStorage{}
	if err := pg.Connect(cfg); err != nil {
		return err
	}
	postgresInstance = pg
	return nil
}

func GetPostgres() *PostgresStorage {
	return postgresInstance
}

// Connect establishes the connection pool and ensures the schema exists.
func (p *PostgresStorage) Connect(cfg configuration.DatabaseConfig) error {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	p.Db = db

	if err := p.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %v", err)
	}

	log.Println("Connected to PostgreSQL successfully")
	return nil
}

// Close drains the pool. Called once at process shutdown.
func (p *PostgresStorage) Close() error {
	if p == nil || p.Db == nil {
		return nil
	}
	return p.Db.Close()
}

func (p *PostgresStorage) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS picture_uploads (
        upload_id VARCHAR(100) PRIMARY KEY,
        contact_id VARCHAR(255) NOT NULL,
        filename VARCHAR(255),
        file_size BIGINT DEFAULT 0,
        file_type VARCHAR(100),
        url TEXT,
        density_model_run BOOLEAN DEFAULT false,
        thickness_model_run BOOLEAN DEFAULT false,
        processing_status VARCHAR(50) NOT NULL DEFAULT 'processing',
        error_message TEXT,
        analysis_results JSONB,
        scan_status VARCHAR(50) DEFAULT 'pending',
        scanned_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    `
	_, err := p.Db.Exec(query)
	if err != nil {
		return err
	}

	// Idempotent: add lifecycle columns if missing (safe on restarts)
	alterQueries := []string{
		`ALTER TABLE picture_uploads ADD COLUMN IF NOT EXISTS scan_status VARCHAR(50) DEFAULT 'pending'`,
		`ALTER TABLE picture_uploads ADD COLUMN IF NOT EXISTS scanned_at TIMESTAMPTZ`,
	}
	for _, altQuery := range alterQueries {
		if _, err := p.Db.Exec(altQuery); err != nil {
			log.Printf("Warning during ALTER: %v", err)
		}
	}

	indexQuery := `
    CREATE INDEX IF NOT EXISTS idx_picture_uploads_contact_id ON picture_uploads(contact_id);
    CREATE INDEX IF NOT EXISTS idx_picture_uploads_created_at ON picture_uploads(created_at DESC);
    CREATE INDEX IF NOT EXISTS idx_picture_uploads_status ON picture_uploads(processing_status);
    `

	_, err = p.Db.Exec(indexQuery)
	return err
}

func (p *PostgresStorage) getStats() map[string]interface{} {
	var totalUploads int
	var completed int
	var failed int
	var latestUpload time.Time

	err := p.Db.QueryRow(`
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE processing_status = 'completed'),
               COUNT(*) FILTER (WHERE processing_status = 'error'),
               COALESCE(MAX(created_at), NOW())
        FROM picture_uploads
    `).Scan(&totalUploads, &completed, &failed, &latestUpload)

	if err != nil {
		log.Printf("Error getting stats: %v", err)
		return map[string]interface{}{}
	}

	return map[string]interface{}{
		"total_uploads": totalUploads,
		"completed":     completed,
		"failed":        failed,
		"latest_upload": latestUpload,
	}
}

// GetStats reports store-level counters for the status endpoint.
func GetStats() map[string]interface{} {
	if postgresInstance == nil {
		return map[string]interface{}{}
	}
	return postgresInstance.getStats()
}
