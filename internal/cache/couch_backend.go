package cache

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-kivik/kivik/v4"
)

// couchEntry is the stored document. Removal writes a tombstone (Deleted set, no Data)
// because the fs driver cannot delete documents.
type couchEntry struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	Data    string `json:"data,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// CouchBackend stores entries as documents in a kivik database. With the "fs" driver
// the database is a directory on local disk; with "couch" it is a local CouchDB.
type CouchBackend struct {
	client *kivik.Client
	dbName string

	once    sync.Once
	initErr error
}

func NewCouchBackend(client *kivik.Client, dbName string) *CouchBackend {
	return &CouchBackend{
		client: client,
		dbName: dbName,
	}
}

func (b *CouchBackend) db(ctx context.Context) (*kivik.DB, error) {
	b.once.Do(func() {
		exists, err := b.client.DBExists(ctx, b.dbName)
		if err != nil {
			b.initErr = fmt.Errorf("failed to check cache database: %w", err)
			return
		}
		if !exists {
			if err := b.client.CreateDB(ctx, b.dbName); err != nil {
				b.initErr = fmt.Errorf("failed to create cache database: %w", err)
			}
		}
	})
	if b.initErr != nil {
		return nil, b.initErr
	}

	return b.client.DB(b.dbName), nil
}

func (b *CouchBackend) Read(ctx context.Context, key string) ([]byte, error) {
	db, err := b.db(ctx)
	if err != nil {
		return nil, err
	}

	var doc couchEntry
	if err := db.Get(ctx, key).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if doc.Deleted {
		return nil, ErrMiss
	}

	return []byte(doc.Data), nil
}

func (b *CouchBackend) Write(ctx context.Context, key string, data []byte) error {
	db, err := b.db(ctx)
	if err != nil {
		return err
	}

	rev, err := b.currentRev(ctx, db, key)
	if err != nil {
		return err
	}

	doc := couchEntry{ID: key, Rev: rev, Data: string(data)}
	if _, err := db.Put(ctx, key, doc); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

func (b *CouchBackend) Delete(ctx context.Context, key string) error {
	db, err := b.db(ctx)
	if err != nil {
		return err
	}

	var doc couchEntry
	if err := db.Get(ctx, key).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to read cache entry: %w", err)
	}
	if doc.Deleted {
		return nil
	}

	tombstone := couchEntry{ID: key, Rev: doc.Rev, Deleted: true}
	if _, err := db.Put(ctx, key, tombstone); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

func (b *CouchBackend) currentRev(ctx context.Context, db *kivik.DB, key string) (string, error) {
	rev, err := db.GetRev(ctx, key)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up cache entry revision: %w", err)
	}
	return rev, nil
}
