package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roni12291832/nexus-car/internal/config"
)

func main() {
	migrationsDir := flag.String("migrations", "db/migrations/postgres", "Diretório de migrations PostgreSQL")
	migrationsSQLiteDir := flag.String("migrations-sqlite", "db/migrations/sqlite", "Diretório de migrations SQLite")
	seedsDir := flag.String("seeds", "db/seeds", "Diretório de seeds")
	withSeeds := flag.Bool("with-seeds", false, "Executar seeds após migrations")
	flag.Parse()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch cfg.Storage.Driver {
	case "sqlite", "":
		log.Println("migrate: usando SQLite")
		runSQLiteMigrations(ctx, cfg, *migrationsSQLiteDir, *seedsDir, *withSeeds)
	case "postgres":
		log.Println("migrate: usando PostgreSQL")
		runPostgresMigrations(ctx, cfg, *migrationsDir, *seedsDir, *withSeeds)
	default:
		log.Fatalf("migrate: driver desconhecido: %s", cfg.Storage.Driver)
	}
}

func runSQLiteMigrations(ctx context.Context, cfg config.Config, migrationsDir, seedsDir string, withSeeds bool) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		log.Fatalf("migrate: erro ao criar diretório: %v", err)
	}

	dbPath := filepath.Join(cfg.Storage.DataDir, "nexuscar.db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Fatalf("migrate: falha ao abrir SQLite: %v", err)
	}
	defer db.Close()

	log.Printf("migrate: conectado ao SQLite em %s", dbPath)

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		log.Fatalf("migrate: falha ao preparar schema_migrations: %v", err)
	}

	files, err := listSQLFiles(migrationsDir, ".up.sql")
	if err != nil {
		log.Fatalf("migrate: listar migrations: %v", err)
	}

	for _, file := range files {
		version := filepath.Base(file)

		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			log.Fatalf("migrate: verificar %s: %v", version, err)
		}
		if count > 0 {
			continue
		}

		log.Printf("migrate: aplicando %s ...", version)
		contents, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("migrate: ler %s: %v", version, err)
		}

		if err := execBatchSQLite(ctx, db, string(contents)); err != nil {
			log.Fatalf("migrate: executar %s: %v", version, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			log.Fatalf("migrate: registrar %s: %v", version, err)
		}
		log.Printf("migrate: %s aplicado.", version)
	}

	if withSeeds {
		if err := runSeedsSQLite(ctx, db, seedsDir); err != nil {
			log.Fatalf("migrate: erro ao executar seeds: %v", err)
		}
	}

	log.Println("migrate: concluído com sucesso.")
}

// Statements separados por ";"; o schema não usa ";" interno.
func execBatchSQLite(ctx context.Context, db *sql.DB, batch string) error {
	for _, stmt := range strings.Split(batch, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func runSeedsSQLite(ctx context.Context, db *sql.DB, dir string) error {
	files, err := listSQLFiles(dir, ".sql")
	if err != nil {
		return fmt.Errorf("listar seeds: %w", err)
	}
	for _, file := range files {
		contents, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("ler seed %s: %w", file, err)
		}
		if err := execBatchSQLite(ctx, db, string(contents)); err != nil {
			return fmt.Errorf("executar seed %s: %w", file, err)
		}
		log.Printf("migrate: seed %s aplicado", filepath.Base(file))
	}
	return nil
}

func runPostgresMigrations(ctx context.Context, cfg config.Config, migrationsDir, seedsDir string, withSeeds bool) {
	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatalf("migrate: falha ao conectar no banco: %v", err)
	}
	defer pool.Close()

	log.Println("migrate: conectado ao PostgreSQL, garantindo tabela de controle...")
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Fatalf("migrate: falha ao preparar schema_migrations: %v", err)
	}

	files, err := listSQLFiles(migrationsDir, ".up.sql")
	if err != nil {
		log.Fatalf("migrate: listar migrations: %v", err)
	}

	for _, file := range files {
		version := filepath.Base(file)

		var exists bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists); err != nil {
			log.Fatalf("migrate: verificar %s: %v", version, err)
		}
		if exists {
			continue
		}

		log.Printf("migrate: aplicando %s ...", version)
		contents, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("migrate: ler %s: %v", version, err)
		}

		execCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		_, err = pool.Exec(execCtx, string(contents))
		cancel()
		if err != nil {
			log.Fatalf("migrate: executar %s: %v", version, err)
		}

		if _, err := pool.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			log.Fatalf("migrate: registrar %s: %v", version, err)
		}
		log.Printf("migrate: %s aplicado.", version)
	}

	if withSeeds {
		files, err := listSQLFiles(seedsDir, ".sql")
		if err != nil {
			log.Fatalf("migrate: listar seeds: %v", err)
		}
		for _, file := range files {
			contents, err := os.ReadFile(file)
			if err != nil {
				log.Fatalf("migrate: ler seed %s: %v", file, err)
			}
			if _, err := pool.Exec(ctx, string(contents)); err != nil {
				log.Fatalf("migrate: executar seed %s: %v", file, err)
			}
			log.Printf("migrate: seed %s aplicado", filepath.Base(file))
		}
	}

	log.Println("migrate: concluído com sucesso.")
}

func listSQLFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
