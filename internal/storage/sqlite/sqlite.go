package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type DB struct {
	Conn *sql.DB
	log  *zap.Logger
}

func New(dataDir string, log *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("sqlite: criar diretório: %w", err)
	}

	dbPath := filepath.Join(dataDir, "nexuscar.db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", dbPath)

	db, err := Open(dsn, log)
	if err != nil {
		return nil, err
	}

	log.Info("sqlite: conectado com sucesso", zap.String("path", dbPath))
	return db, nil
}

// Open abre uma conexão pelo DSN. Usado por New e pelos testes com
// banco em memória.
func Open(dsn string, log *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: falha ao abrir: %w", err)
	}

	// SQLite não suporta múltiplas escritas simultâneas.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("sqlite: falha ao ping: %w", err)
	}

	return &DB{Conn: db, log: log}, nil
}

func (db *DB) Close() error {
	if db.Conn != nil {
		return db.Conn.Close()
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func fmtTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
