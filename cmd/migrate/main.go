package main

import (
	"database/sql"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"server/internal/infra"
)

// Applies the SQL files under migrations/ in lexical order. Statements are
// written to be re-runnable (IF NOT EXISTS), so there is no version table.
func main() {
	dir := flag.String("dir", "migrations", "directory containing .sql migration files")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: open database failed")
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("migrate: database unreachable")
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *dir).Msg("migrate: read migrations dir failed")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(*dir, name)
		contents, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal().Err(err).Str("file", name).Msg("migrate: read migration failed")
		}
		if _, err := db.Exec(string(contents)); err != nil {
			logger.Fatal().Err(err).Str("file", name).Msg("migrate: apply migration failed")
		}
		logger.Info().Str("file", name).Msg("migrate: applied")
	}

	logger.Info().Int("count", len(files)).Msg("migrate: done")
}
