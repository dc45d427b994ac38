package collection

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

const (
	recordTable = "collection_records"

	indexID       = "id"
	indexUser     = "user"
	indexNameUser = "name_user"
)

func recordSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			recordTable: {
				Name: recordTable,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexUser: {
						Name:    indexUser,
						Indexer: &memdb.StringFieldIndex{Field: "User"},
					},
					indexNameUser: {
						Name:   indexNameUser,
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Name"},
								&memdb.StringFieldIndex{Field: "User"},
							},
						},
					},
				},
			},
		},
	}
}

// MemoryRepo keeps records in process memory. Used by tests and by the API
// when COLLECTION_STORE=memory.
type MemoryRepo struct {
	db *memdb.MemDB
}

func NewMemoryRepo() (*MemoryRepo, error) {
	db, err := memdb.NewMemDB(recordSchema())
	if err != nil {
		return nil, err
	}
	return &MemoryRepo{db: db}, nil
}

// Insert checks the (name, user) index inside the write transaction; memdb
// itself overwrites on unique secondary index collisions.
func (r *MemoryRepo) Insert(_ context.Context, rec *Record) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(recordTable, indexNameUser, rec.Name, rec.User)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyOwned
	}

	stored := cloneRecord(*rec)
	stored.ID = uuid.NewString()
	if err := txn.Insert(recordTable, &stored); err != nil {
		return err
	}
	txn.Commit()

	rec.ID = stored.ID
	return nil
}

func (r *MemoryRepo) FindByNameAndUser(_ context.Context, name, user string) ([]Record, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(recordTable, indexNameUser, name, user)
	if err != nil {
		return nil, err
	}
	return collect(it), nil
}

func (r *MemoryRepo) ListByUser(_ context.Context, user string) ([]Record, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(recordTable, indexUser, user)
	if err != nil {
		return nil, err
	}
	records := collect(it)
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Name < records[j].Name
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(recordTable, indexID, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if err := txn.Delete(recordTable, existing); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func collect(it memdb.ResultIterator) []Record {
	var records []Record
	for obj := it.Next(); obj != nil; obj = it.Next() {
		records = append(records, cloneRecord(*obj.(*Record)))
	}
	return records
}

func cloneRecord(rec Record) Record {
	rec.Types = append([]string(nil), rec.Types...)
	rec.Abilities = append([]string(nil), rec.Abilities...)
	return rec
}
