package bench

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// History persists benchmark summaries in a local SQLite database so
// runs on the same machine can be compared over time.
type History struct {
	db *sql.DB
}

// OpenHistory opens (and initializes) the history database at path,
// creating parent directories as needed.
func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(filepath.Clean(path)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := bootstrap(db); err != nil {
		db.Close()
		return nil, err
	}
	return &History{db: db}, nil
}

func bootstrap(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bench_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			mode TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt_tokens INTEGER NOT NULL,
			gen_tokens INTEGER NOT NULL,
			lanes INTEGER NOT NULL,
			trials INTEGER NOT NULL,
			prompt_tps_mean REAL NOT NULL,
			prompt_tps_std REAL NOT NULL,
			gen_tps_mean REAL NOT NULL,
			gen_tps_std REAL NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create bench_runs table: %w", err)
	}
	return nil
}

// Record stores the summary of one completed benchmark.
func (h *History) Record(ctx context.Context, res *Result) error {
	prompt := res.PromptStats()
	gen := res.GenerationStats()
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO bench_runs (
			created_at, mode, model,
			prompt_tokens, gen_tokens, lanes, trials,
			prompt_tps_mean, prompt_tps_std, gen_tps_mean, gen_tps_std
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.StartedAt.Unix(), res.Mode, res.ModelDesc,
		res.Config.PromptTokens, res.Config.GenTokens, res.Config.Lanes, res.Config.Trials,
		prompt.Mean, prompt.Std, gen.Mean, gen.Std,
	)
	if err != nil {
		return fmt.Errorf("record benchmark: %w", err)
	}
	return nil
}

// RunSummary is one stored benchmark row.
type RunSummary struct {
	ID        int64
	CreatedAt time.Time
	Mode      string
	Model     string
	Config    Config
	Prompt    Stats
	Gen       Stats
}

// Recent returns up to limit summaries, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, created_at, mode, model,
			prompt_tokens, gen_tokens, lanes, trials,
			prompt_tps_mean, prompt_tps_std, gen_tps_mean, gen_tps_std
		FROM bench_runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s       RunSummary
			created int64
		)
		err := rows.Scan(&s.ID, &created, &s.Mode, &s.Model,
			&s.Config.PromptTokens, &s.Config.GenTokens, &s.Config.Lanes, &s.Config.Trials,
			&s.Prompt.Mean, &s.Prompt.Std, &s.Gen.Mean, &s.Gen.Std)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		s.CreatedAt = time.Unix(created, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (h *History) Close() error {
	return h.db.Close()
}
