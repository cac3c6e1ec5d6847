package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/use-agent/slotwatch/models"
)

// Backend persists runs beyond the process lifetime.
type Backend interface {
	Save(r *models.RunResult) error
	// Recent returns up to n runs, oldest first.
	Recent(n int) ([]*models.RunResult, error)
	Close() error
}

var runPrefix = []byte("run/")

// BadgerBackend stores runs in a badger database, keyed by save time so
// iteration order is run order.
type BadgerBackend struct {
	db     *badger.DB
	retain int
	now    func() time.Time
}

// OpenBadger opens (or creates) the database in dir and keeps at most
// retain runs (retain <= 0 keeps everything). An empty dir opens an
// in-memory database.
func OpenBadger(dir string, retain int) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return &BadgerBackend{db: db, retain: retain, now: time.Now}, nil
}

func (b *BadgerBackend) key(r *models.RunResult) []byte {
	return fmt.Appendf(append([]byte{}, runPrefix...), "%020d/%s", b.now().UnixNano(), r.ID)
}

// Save writes r and prunes runs beyond the retention limit.
func (b *BadgerBackend) Save(r *models.RunResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", r.ID, err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(r), data)
	}); err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	if b.retain > 0 {
		return b.prune()
	}
	return nil
}

func (b *BadgerBackend) prune() error {
	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(reverseOpts())
		defer it.Close()
		kept := 0
		for it.Seek(seekLast()); it.ValidForPrefix(runPrefix); it.Next() {
			if kept < b.retain {
				kept++
				continue
			}
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n of the newest runs, oldest first. Entries that
// fail to decode are skipped.
func (b *BadgerBackend) Recent(n int) ([]*models.RunResult, error) {
	var newest []*models.RunResult
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(reverseOpts())
		defer it.Close()
		for it.Seek(seekLast()); it.ValidForPrefix(runPrefix) && len(newest) < n; it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var r models.RunResult
			if err := json.Unmarshal(data, &r); err != nil {
				slog.Warn("history entry skipped", "key", string(it.Item().Key()), "error", err)
				continue
			}
			newest = append(newest, &r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

// Close releases the database.
func (b *BadgerBackend) Close() error { return b.db.Close() }

func reverseOpts() badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = runPrefix
	return opts
}

func seekLast() []byte {
	return append(append([]byte{}, runPrefix...), 0xFF)
}

// badgerLogger routes badger's logging to slog; info chatter goes to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	slog.Error("badger: " + fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...any) {
	slog.Warn("badger: " + fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...any) {
	slog.Debug("badger: " + fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(format string, args ...any) {
	slog.Debug("badger: " + fmt.Sprintf(format, args...))
}
