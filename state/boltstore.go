package state

import (
	"encoding/binary"
	"time"

	"github.com/dedis/tokenlottery/address"
	"go.dedis.ch/onet/v3/log"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	accountsBucket = []byte("accounts")
	metaBucket     = []byte("meta")
)

// BoltStore persists accounts in a bbolt file. Every Apply is a single
// bolt transaction.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("couldn't open %s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(accountsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("couldn't create buckets: %v", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *BoltStore) Get(addr address.Address) (*Account, error) {
	var buf []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(accountsBucket).Get(addr[:])
		if v != nil {
			buf = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, ErrAccountNotFound
	}
	return DecodeAccount(buf)
}

// Apply implements Store.
func (s *BoltStore) Apply(changes []Change) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucket)
		for _, ch := range changes {
			buf, err := ch.Account.Encode()
			if err != nil {
				return err
			}
			if err := b.Put(ch.Address.Bytes(), buf); err != nil {
				return xerrors.Errorf("couldn't store %s: %v", ch.Address, err)
			}
		}
		log.Lvlf3("bolt: applied %d account changes", len(changes))
		return nil
	})
}

// ForEach implements Store.
func (s *BoltStore) ForEach(fn func(addr address.Address, acct *Account) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			addr, err := address.FromBytes(k)
			if err != nil {
				return err
			}
			acct, err := DecodeAccount(v)
			if err != nil {
				return err
			}
			return fn(addr, acct)
		})
	})
}

// Meta reads a uint64 bookkeeping value, zero when unset.
func (s *BoltStore) Meta(key string) (uint64, error) {
	var val uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get([]byte(key))
		if len(v) == 8 {
			val = binary.LittleEndian.Uint64(v)
		}
		return nil
	})
	return val, err
}

// PutMeta writes a uint64 bookkeeping value.
func (s *BoltStore) PutMeta(key string, val uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, val)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), buf)
	})
}
