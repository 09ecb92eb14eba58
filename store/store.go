// Package store keeps serialized tree databases in a bbolt file, one
// named record per tree with a JSON metadata sidecar.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"

	"bitbucket.org/egrice/phyloplace/ptree"
)

// log is the global logging variable.
var log = logging.MustGetLogger("store")

var (
	treeBucket = []byte("trees")
	metaBucket = []byte("meta")
)

// Meta describes a stored tree record.
type Meta struct {
	Name   string    `json:"name"`
	Model  string    `json:"model"`
	Leaves int       `json:"leaves"`
	Sites  int       `json:"sites"`
	Saved  time.Time `json:"saved"`
}

// Store is a bbolt-backed tree database. bbolt takes an exclusive file
// lock, so a store open for writing cannot be opened twice.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) a store file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(treeBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store %s: %v", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTree serializes a tree under the given record name, replacing
// any previous record.
func (s *Store) SaveTree(name string, t *ptree.Tree) error {
	var buf bytes.Buffer
	if err := t.Save(&buf); err != nil {
		return fmt.Errorf("serializing tree <%s>: %v", name, err)
	}
	meta := Meta{
		Name:   name,
		Model:  t.Model().Type(),
		Leaves: t.NumLeaves(),
		Sites:  t.NumAlignSites(),
		Saved:  time.Now(),
	}
	mb, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(treeBucket).Put([]byte(name), buf.Bytes()); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put([]byte(name), mb)
	})
	if err != nil {
		return fmt.Errorf("storing tree <%s>: %v", name, err)
	}
	log.Infof("stored tree <%s>: %d leaves, %d sites, %d bytes",
		name, meta.Leaves, meta.Sites, buf.Len())
	return nil
}

// LoadTree deserializes the named tree record.
func (s *Store) LoadTree(name string) (*ptree.Tree, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(treeBucket).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("no tree record <%s>", name)
		}
		blob = append(blob, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	t, err := ptree.Load(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("loading tree <%s>: %v", name, err)
	}
	return t, nil
}

// Meta returns the metadata of the named record.
func (s *Store) Meta(name string) (*Meta, error) {
	var meta Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("no tree record <%s>", name)
		}
		return json.Unmarshal(v, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Names returns the names of all stored records.
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(treeBucket).ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}
