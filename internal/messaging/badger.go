package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/zulandar/chatrelay/internal/models"
	"gorm.io/datatypes"
)

// sequenceBandwidth is how many ids badger leases per disk write.
const sequenceBandwidth = 100

var sequenceKey = []byte("seq:messages")

// BadgerStore implements Store on an embedded badger database. Keys are
// "msg:{channel}:{id padded to 20 digits}" so a reverse prefix scan yields the
// newest messages of a channel first.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time

	// mu keeps id assignment and commit in the same order.
	mu sync.Mutex
}

// OpenBadger opens (or creates) a badger database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("messaging: open badger %s: %w", path, err)
	}
	s, err := NewBadgerStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewBadgerStore wraps an open badger database.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("messaging: badger sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, now: Now}, nil
}

// Close releases the id lease and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("messaging: release sequence: %w", err)
	}
	return s.db.Close()
}

// Create commits a message under the next sequence id.
func (s *BadgerStore) Create(ctx context.Context, content, channel string, opts CreateOpts) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("messaging: content is required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: create in %s: %w", ErrUnavailable, channel, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: next id: %w", ErrUnavailable, err)
	}

	msg := models.Message{
		ID:        uint(next + 1), // sequences start at zero
		Content:   content,
		Channel:   channel,
		UserName:  opts.UserName,
		UserID:    opts.UserID,
		CreatedAt: s.now(),
	}
	if opts.Metadata != nil {
		msg.Metadata = datatypes.JSONMap(opts.Metadata)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("messaging: encode message: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(channel, msg.ID), data)
	}); err != nil {
		return nil, fmt.Errorf("%w: create in %s: %w", ErrUnavailable, channel, err)
	}
	return &msg, nil
}

// ListByChannel scans the channel prefix backwards from the newest key, then
// reverses the page into chronological order.
func (s *BadgerStore) ListByChannel(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	limit = clampLimit(limit)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, channel, err)
	}

	prefix := channelPrefix(channel)
	msgs := make([]models.Message, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(slices.Clone(prefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if len(msgs) == limit {
				break
			}
			var m models.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, channel, err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func channelPrefix(channel string) []byte {
	return []byte("msg:" + channel + ":")
}

func messageKey(channel string, id uint) []byte {
	return fmt.Appendf(nil, "msg:%s:%020d", channel, id)
}
