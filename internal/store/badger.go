package store

import (
	"bytes"
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/IsseiKhai277/foodallergens/internal/model"
	"github.com/IsseiKhai277/foodallergens/internal/output"
)

const keyPrefix = "pred/"

// Badger stores predictions under pred/<model>/<id> as msgpack values.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens a Badger store in dir, or in memory when dir is empty.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store %q: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func predictionKey(p model.Prediction) []byte {
	return []byte(keyPrefix + Sanitize(p.Model) + "/" + p.ID)
}

func modelPrefix(modelName string) []byte {
	return []byte(keyPrefix + Sanitize(modelName) + "/")
}

func encode(p model.Prediction) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(val []byte) (model.Prediction, error) {
	var p model.Prediction
	dec := msgpack.NewDecoder(bytes.NewReader(val))
	dec.SetCustomStructTag("json")
	err := dec.Decode(&p)
	return p, err
}

func (b *Badger) Save(ctx context.Context, p model.Prediction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p = withID(p)
	val, err := encode(p)
	if err != nil {
		return "", fmt.Errorf("save prediction: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(predictionKey(p), val)
	})
	if err != nil {
		return "", fmt.Errorf("save prediction: %w", err)
	}
	return p.ID, nil
}

func (b *Badger) SaveAll(ctx context.Context, ps []model.Prediction) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, p := range ps {
		p = withID(p)
		val, err := encode(p)
		if err != nil {
			return 0, fmt.Errorf("save predictions: %w", err)
		}
		if err := wb.Set(predictionKey(p), val); err != nil {
			return 0, fmt.Errorf("save predictions: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("save predictions: %w", err)
	}
	return len(ps), nil
}

// scan calls fn with every prediction whose key starts with prefix.
func (b *Badger) scan(ctx context.Context, prefix []byte, fn func(key []byte, p model.Prediction)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			p, err := decode(val)
			if err != nil {
				output.Logger.Warn("Skipping undecodable prediction", "key", string(item.Key()), "error", err)
				continue
			}
			fn(item.KeyCopy(nil), p)
		}
		return nil
	})
}

func (b *Badger) ListByModel(ctx context.Context, modelName string) ([]model.Prediction, error) {
	var out []model.Prediction
	// Distinct names can share a sanitized prefix ("a.b", "a-b").
	err := b.scan(ctx, modelPrefix(modelName), func(_ []byte, p model.Prediction) {
		if p.Model == modelName {
			out = append(out, p)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list predictions for %s: %w", modelName, err)
	}
	sortPredictions(out)
	return out, nil
}

func (b *Badger) ListGrouped(ctx context.Context) (map[string][]model.Prediction, error) {
	var all []model.Prediction
	err := b.scan(ctx, []byte(keyPrefix), func(_ []byte, p model.Prediction) {
		all = append(all, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return group(all), nil
}

func (b *Badger) DeleteAll(ctx context.Context) (int, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete predictions: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	return len(keys), nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger warnings and errors into the shared logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...any) {
	output.Logger.Error(fmt.Sprintf("badger: "+f, v...))
}

func (badgerLogger) Warningf(f string, v ...any) {
	output.Logger.Warn(fmt.Sprintf("badger: "+f, v...))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
