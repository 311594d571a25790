package database

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/source"
)

// Store maps a gorm model M to a keyed entity store. Entities travel as
// *M; K is the type of the primary key column.
type Store[K comparable, M any] struct {
	db     *DB
	column string
	key    func(*M) K
	name   string
}

var (
	_ source.KeyedSource[string, *struct{}]          = (*Store[string, struct{}])(nil)
	_ source.DataSink[*struct{}, source.Operation] = (*Store[string, struct{}])(nil)
)

// NewStore returns a store over db. column names the primary key column
// and key reads it from a model.
func NewStore[K comparable, M any](db *DB, column string, key func(*M) K) *Store[K, M] {
	return &Store[K, M]{db: db, column: column, key: key, name: fmt.Sprintf("%T", *new(M))}
}

// Fetch returns the rows matching query, a SQL WHERE clause, ordered by
// key. An empty query returns the whole table.
func (s *Store[K, M]) Fetch(ctx context.Context, query string, _ *pipeline.Context) ([]*M, error) {
	q := s.db.WithContext(ctx).Order(s.column)
	if query != "" {
		q = q.Where(query)
	}
	var out []*M
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("database fetch %s: %w", s.name, err)
	}
	return out, nil
}

// Find loads the row with key. A missing row reports found=false.
func (s *Store[K, M]) Find(ctx context.Context, key K, _ *pipeline.Context) (*M, bool, error) {
	var m M
	res := s.db.WithContext(ctx).Where(s.column+" = ?", key).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, false, fmt.Errorf("database find %s: %w", s.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	return &m, true, nil
}

// Process applies op to the batch in one transaction. Create fails when
// any key exists; Update and Delete fail when any key is missing. Delete
// returns the rows as stored.
func (s *Store[K, M]) Process(ctx context.Context, items []*M, op source.Operation, _ *pipeline.Context) ([]*M, error) {
	switch op {
	case source.Create, source.Update, source.Upsert, source.Delete:
	default:
		return nil, errors.UnsupportedOperation(op.String())
	}
	if len(items) == 0 {
		return nil, nil
	}

	keys := make([]K, 0, len(items))
	for _, item := range items {
		if k := s.key(item); !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}

	out := items
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []K
		if err := tx.Model(new(M)).Where(s.column+" IN ?", keys).Pluck(s.column, &existing).Error; err != nil {
			return err
		}

		switch op {
		case source.Create:
			if len(existing) > 0 {
				return errors.InvalidInput("key", fmt.Sprintf("%s %v already exists", s.name, existing[0]))
			}
			return tx.Create(&items).Error

		case source.Update:
			if err := s.requireAll(keys, existing); err != nil {
				return err
			}
			for _, item := range items {
				if err := tx.Save(item).Error; err != nil {
					return err
				}
			}
			return nil

		case source.Upsert:
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&items).Error

		default:
			if err := s.requireAll(keys, existing); err != nil {
				return err
			}
			var stored []*M
			if err := tx.Where(s.column+" IN ?", keys).Order(s.column).Find(&stored).Error; err != nil {
				return err
			}
			out = stored
			return tx.Where(s.column+" IN ?", keys).Delete(new(M)).Error
		}
	})
	if err != nil {
		return nil, translate(err, s.name)
	}
	return out, nil
}

func (s *Store[K, M]) requireAll(keys, existing []K) error {
	for _, k := range keys {
		if !slices.Contains(existing, k) {
			return errors.NotFound(s.name, fmt.Sprint(k))
		}
	}
	return nil
}
