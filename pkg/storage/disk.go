package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"

	"audio-transcriber/pkg/models"
)

const (
	jobPrefix    = "job:"
	resultPrefix = "result:"
)

// DiskStore persists finished jobs and indexes them by ResultKey so an
// identical upload can be answered without calling the services again.
type DiskStore interface {
	StoreJob(job *models.Job) error
	GetJob(id string) (*models.Job, error)
	StoreResult(key string, job *models.Job) error
	LookupResult(key string) (*models.Job, error)
	Close() error
}

type diskStore struct {
	db *badger.DB
}

func NewDiskStore(path string) (DiskStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &diskStore{db: db}, nil
}

func (s *diskStore) StoreJob(job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(jobPrefix+job.ID), data)
	})
}

func (s *diskStore) GetJob(id string) (*models.Job, error) {
	var job models.Job

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// StoreResult writes the job and points key at it in one transaction.
func (s *diskStore) StoreResult(key string, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(jobPrefix+job.ID), data); err != nil {
			return err
		}
		return txn.Set([]byte(resultPrefix+key), []byte(job.ID))
	})
}

func (s *diskStore) LookupResult(key string) (*models.Job, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(resultPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up result: %w", err)
	}
	return s.GetJob(id)
}

func (s *diskStore) Close() error {
	return s.db.Close()
}
