package models

import (
	"context"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore backs Store with a gorm connection. Reads inside a transaction take row locks.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Products() RecordStore[Product] {
	return gormRecords[Product]{db: s.db, locking: s.inTx}
}

func (s *GormStore) Suppliers() RecordStore[Supplier] {
	return gormRecords[Supplier]{db: s.db}
}

func (s *GormStore) StockMovements() RecordStore[StockMovement] {
	return gormRecords[StockMovement]{db: s.db}
}

func (s *GormStore) Orders() RecordStore[Order] {
	return gormRecords[Order]{db: s.db, preload: []string{"Items"}}
}

func (s *GormStore) OrderOutbox() RecordStore[OrderOutbox] {
	return gormRecords[OrderOutbox]{db: s.db, locking: s.inTx}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}

type gormRecords[T any] struct {
	db      *gorm.DB
	locking bool
	preload []string
}

func (r gormRecords[T]) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	for _, p := range r.preload {
		q = q.Preload(p)
	}
	return q
}

func (r gormRecords[T]) Find(ctx context.Context, filter Filter, order string, limit int) ([]*T, error) {
	var model T
	q := r.query(ctx).Model(&model)
	if len(filter) > 0 {
		q = q.Where(map[string]interface{}(filter))
	}
	if order != "" {
		q = q.Order(order)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var results []*T
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r gormRecords[T]) FindById(ctx context.Context, id int) (*T, error) {
	q := r.query(ctx)
	if r.locking {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var result T
	if err := q.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r gormRecords[T]) Create(ctx context.Context, record *T) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return utils.ErrDuplicateRecord
		}
		return err
	}
	return nil
}

func (r gormRecords[T]) Update(ctx context.Context, id int, patch map[string]interface{}) (*T, error) {
	var model T
	tx := r.db.WithContext(ctx).Model(&model).Where("id = ?", id).Updates(patch)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return r.FindById(ctx, id)
}

func (r gormRecords[T]) Delete(ctx context.Context, id int) error {
	record, err := r.FindById(ctx, id)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Select(clause.Associations).Delete(record).Error
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
