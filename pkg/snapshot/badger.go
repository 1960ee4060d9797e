// Package snapshot persists document snapshots on Badger.
//
// A snapshot is the full node set of one document, serialized as JSON and
// stamped with a BLAKE2b-256 checksum. Loading verifies the checksum
// before handing nodes back, so a corrupted value surfaces as
// ErrChecksumMismatch instead of a silently wrong document.
//
// Example Usage:
//
//	st, err := snapshot.Open("./data", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	if err := st.Save("doc-1", ds.GetAllNodes()); err != nil {
//		log.Fatal(err)
//	}
//
//	nodes, err := st.Load("doc-1")
//	// seed a fresh store: ds.SetNode(n, false) per node
package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/barocss/editor-core/pkg/document"
)

const docKeyPrefix = "doc:"

// Store errors.
var (
	ErrNotFound         = errors.New("snapshot not found")
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

// record is the persisted value: checksum over the serialized node list.
type record struct {
	Checksum string           `json:"checksum"`
	Nodes    []*document.Node `json:"nodes"`
}

// Store is a Badger-backed snapshot store.
type Store struct {
	db  *badger.DB
	log *zap.Logger
}

// Open opens (or creates) a snapshot store in dir.
func Open(dir string, log *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db, log: log.Named("snapshot")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func docKey(docID string) []byte {
	return []byte(docKeyPrefix + docID)
}

// checksum hashes the serialized node list.
func checksum(nodes []byte) string {
	sum := blake2b.Sum256(nodes)
	return hex.EncodeToString(sum[:])
}

// Save writes the document's node set under its id, replacing any
// previous snapshot.
func (s *Store) Save(docID string, nodes []*document.Node) error {
	body, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("marshal snapshot %q: %w", docID, err)
	}
	rec, err := json.Marshal(record{Checksum: checksum(body), Nodes: nodes})
	if err != nil {
		return fmt.Errorf("marshal snapshot %q: %w", docID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(docID), rec)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", docID, err)
	}
	s.log.Info("snapshot saved",
		zap.String("doc", docID),
		zap.Int("nodes", len(nodes)),
		zap.Int("bytes", len(rec)))
	return nil
}

// Load reads and verifies a snapshot. The returned nodes are ready for
// bulk seeding with SetNode(node, emit=false).
func (s *Store) Load(docID string) ([]*document.Node, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(docID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("snapshot %q: %w", docID, ErrNotFound)
		}
		return nil, fmt.Errorf("load snapshot %q: %w", docID, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", docID, err)
	}
	body, err := json.Marshal(rec.Nodes)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", docID, err)
	}
	if got := checksum(body); got != rec.Checksum {
		s.log.Error("snapshot checksum mismatch",
			zap.String("doc", docID),
			zap.String("want", rec.Checksum),
			zap.String("got", got))
		return nil, fmt.Errorf("snapshot %q: %w", docID, ErrChecksumMismatch)
	}
	return rec.Nodes, nil
}

// Delete removes a snapshot. Missing ids are not an error.
func (s *Store) Delete(docID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(docID))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %q: %w", docID, err)
	}
	return nil
}

// List returns the stored document ids, sorted by key order.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(docKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, docKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return ids, nil
}
