package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id               TEXT PRIMARY KEY,
	model            TEXT NOT NULL,
	model_key        TEXT NOT NULL,
	data_set         INTEGER NOT NULL,
	item_id          TEXT NOT NULL,
	name             TEXT NOT NULL,
	link             TEXT NOT NULL,
	ingredients      TEXT NOT NULL,
	allergens        TEXT NOT NULL,
	allergens_mapped TEXT NOT NULL,
	predicted        TEXT NOT NULL,
	raw              TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	inference        TEXT NOT NULL,
	quality          TEXT NOT NULL,
	safety           TEXT NOT NULL,
	error            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_model ON predictions(model_key);
`

const selectColumns = `id, model, data_set, item_id, name, link, ingredients, allergens,
	allergens_mapped, predicted, raw, created_at, inference, quality, safety, error`

// SQLite stores predictions in one table; metric groups are JSON columns.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store %s: %w", path, err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(ctx context.Context, p model.Prediction) (string, error) {
	p = withID(p)
	if err := insert(ctx, s.db, p); err != nil {
		return "", fmt.Errorf("save prediction: %w", err)
	}
	return p.ID, nil
}

func (s *SQLite) SaveAll(ctx context.Context, ps []model.Prediction) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save predictions: %w", err)
	}
	defer tx.Rollback()

	for _, p := range ps {
		if err := insert(ctx, tx, withID(p)); err != nil {
			return 0, fmt.Errorf("save predictions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save predictions: %w", err)
	}
	return len(ps), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, p model.Prediction) error {
	inference, err := json.Marshal(p.Inference)
	if err != nil {
		return err
	}
	quality, err := json.Marshal(p.Quality)
	if err != nil {
		return err
	}
	safety, err := json.Marshal(p.Safety)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO predictions (
		id, model, model_key, data_set, item_id, name, link, ingredients, allergens,
		allergens_mapped, predicted, raw, created_at, inference, quality, safety, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Model, Sanitize(p.Model), p.DataSet,
		p.Item.ID, p.Item.Name, p.Item.Link, p.Item.Ingredients, p.Item.Allergens, p.Item.AllergensMapped,
		strings.Join(p.Predicted, ","), p.Raw, p.Timestamp.UTC().Format(time.RFC3339Nano),
		string(inference), string(quality), string(safety), p.Error,
	)
	return err
}

func (s *SQLite) ListByModel(ctx context.Context, modelName string) ([]model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM predictions WHERE model_key = ? AND model = ?", Sanitize(modelName), modelName)
	if err != nil {
		return nil, fmt.Errorf("list predictions for %s: %w", modelName, err)
	}
	ps, err := scanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("list predictions for %s: %w", modelName, err)
	}
	sortPredictions(ps)
	return ps, nil
}

func (s *SQLite) ListGrouped(ctx context.Context) (map[string][]model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM predictions")
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	ps, err := scanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return group(ps), nil
}

func (s *SQLite) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM predictions")
	if err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	return int(n), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanAll(rows *sql.Rows) ([]model.Prediction, error) {
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var (
			p                          model.Prediction
			predicted, createdAt       string
			inference, quality, safety string
		)
		err := rows.Scan(&p.ID, &p.Model, &p.DataSet,
			&p.Item.ID, &p.Item.Name, &p.Item.Link, &p.Item.Ingredients, &p.Item.Allergens, &p.Item.AllergensMapped,
			&predicted, &p.Raw, &createdAt, &inference, &quality, &safety, &p.Error)
		if err != nil {
			return nil, err
		}
		if predicted != "" {
			p.Predicted = strings.Split(predicted, ",")
		}
		if p.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("prediction %s: bad timestamp: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(inference), &p.Inference); err != nil {
			return nil, fmt.Errorf("prediction %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(quality), &p.Quality); err != nil {
			return nil, fmt.Errorf("prediction %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(safety), &p.Safety); err != nil {
			return nil, fmt.Errorf("prediction %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
