package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/diwise/levelstore/internal/pkg/application/editor"
	"github.com/diwise/levelstore/pkg/graph"
	"github.com/diwise/levelstore/pkg/graph/codec"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	appName string = "hash-indexer"
)

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfgPath := env.GetVariableOrDefault(ctx, "LEVELS_CONFIG_PATH", "/opt/diwise/config/levels.yaml")

	levels, err := loadLevels(cfgPath)
	if err != nil {
		log.Error("failed to load levels configuration", "err", err.Error())
		os.Exit(1)
	}

	p, err := connect(ctx, LoadConfiguration(ctx))
	if err != nil {
		log.Error("failed to connect to database", "err", err.Error())
		os.Exit(1)
	}
	defer p.Close()

	if err = createTables(ctx, p); err != nil {
		log.Error("failed to create tables", "err", err.Error())
		os.Exit(1)
	}

	registry := codec.NewRegistry()
	var totalCount int64 = 0

	for _, level := range levels.Levels {
		l := log.With(slog.String("level", level.ID))

		l.Debug("hashing level", slog.Time("start_time", time.Now()))

		rows, err := collectRows(ctx, level, registry)
		if err != nil {
			l.Error("failed to hash level", "err", err.Error())
			os.Exit(1)
		}

		err = storeRows(ctx, p, level.ID, rows)
		if err != nil {
			l.Error("failed to store hashes", "err", err.Error())
			os.Exit(1)
		}

		dups, err := findDuplicates(ctx, p, level.ID)
		if err != nil {
			l.Error("failed to get duplicates", "err", err.Error())
			os.Exit(1)
		}

		for _, d := range dups {
			l.Info("duplicate object",
				slog.String("id", d.ID),
				slog.String("type", d.Type),
				slog.String("store", d.Store),
				slog.String("duplicate_of", d.DuplicateOf),
			)
		}

		totalCount += int64(len(dups))

		l.Debug("done hashing level", slog.Int("objects", len(rows)), slog.Int("duplicates", len(dups)), slog.Time("end_time", time.Now()))
	}

	log.Info("done indexing", slog.Int64("duplicates", totalCount))
}

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "diwise"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func loadLevels(path string) (*editor.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return editor.LoadConfiguration(f)
}

// HashRow is the recursive hash of one object in one of the stores of a level
type HashRow struct {
	Store string
	ID    string
	Type  string
	Hash  string
}

func loadStore(ctx context.Context, path, name string, registry *codec.Registry) (*graph.RawStore, error) {
	if path == "" {
		return graph.NewRawStore(graph.WithName(name), graph.WithCodecs(registry)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return graph.Load(ctx, f, graph.WithName(name), graph.WithCodecs(registry))
}

// collectRows links the documents of a level and hashes every object in them
func collectRows(ctx context.Context, level editor.LevelConfig, registry *codec.Registry) ([]HashRow, error) {
	p, err := loadStore(ctx, level.Primary, level.ID+"/"+editor.PrimaryStore, registry)
	if err != nil {
		return nil, err
	}

	c, err := loadStore(ctx, level.Companion, level.ID+"/"+editor.CompanionStore, registry)
	if err != nil {
		return nil, err
	}

	primary, companion, err := graph.Link(ctx, p, c)
	if err != nil {
		return nil, err
	}

	rows := make([]HashRow, 0, primary.Len()+companion.Len())

	for _, s := range []struct {
		name  string
		store *graph.Store
	}{{editor.PrimaryStore, primary}, {editor.CompanionStore, companion}} {
		for _, obj := range s.store.Objects() {
			rows = append(rows, HashRow{
				Store: s.name,
				ID:    obj.ID(),
				Type:  obj.Type(),
				Hash:  obj.RecursiveHash(nil).String(),
			})
		}
	}

	return rows, nil
}

func connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		return nil, err
	}

	return conn, err
}

func createTables(ctx context.Context, p *pgxpool.Pool) error {
	sql := `
		CREATE TABLE IF NOT EXISTS object_hashes (
			level      TEXT NOT NULL,
			store      TEXT NOT NULL,
			id         TEXT NOT NULL,
			type       TEXT NOT NULL,
			hash       TEXT NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (level, store, id)
		);
		CREATE INDEX IF NOT EXISTS object_hashes_level_hash_idx ON object_hashes (level, hash);`

	_, err := p.Exec(ctx, sql)
	return err
}

// storeRows replaces the indexed hashes of a level with rows
func storeRows(ctx context.Context, p *pgxpool.Pool, level string, rows []HashRow) error {
	indexedAt := time.Now().UTC()

	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}

	for _, r := range rows {
		batch.Queue(`
			INSERT INTO object_hashes (level, store, id, type, hash, indexed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (level, store, id) DO UPDATE
			SET type = EXCLUDED.type, hash = EXCLUDED.hash, indexed_at = EXCLUDED.indexed_at;`,
			level, r.Store, r.ID, r.Type, r.Hash, indexedAt,
		)
	}

	batch.Queue(`DELETE FROM object_hashes WHERE level = $1 AND indexed_at < $2;`, level, indexedAt)

	err = tx.SendBatch(ctx, batch).Close()
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type Duplicate struct {
	ID          string
	Type        string
	Store       string
	DuplicateOf string
}

// findDuplicates returns every object whose recursive hash equals that of an object
// listed before it. Primary store objects are listed first.
func findDuplicates(ctx context.Context, p *pgxpool.Pool, level string) ([]Duplicate, error) {
	sql := `
		select id, type, store, original from (
			SELECT id, type, store,
				FIRST_VALUE(id) OVER w AS original,
				ROW_NUMBER() OVER w AS Row
			FROM object_hashes
			WHERE level = $1
			WINDOW w AS (PARTITION BY level, hash ORDER BY store DESC, id)
		) dups
		where dups.Row > 1
		ORDER BY original, id;`

	rows, err := p.Query(ctx, sql, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dups := make([]Duplicate, 0)

	for rows.Next() {
		var d Duplicate
		err := rows.Scan(&d.ID, &d.Type, &d.Store, &d.DuplicateOf)
		if err != nil {
			return nil, err
		}
		dups = append(dups, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dups, nil
}
