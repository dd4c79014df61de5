package models

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/wholesale_backend/utils"
	"gorm.io/gorm/schema"
)

// MemoryStore is a process-local Store. Rows are kept JSON-encoded so callers never share memory
// with the table. Column names follow gorm's default naming strategy, so filters and patches written
// for GormStore work unchanged.
type MemoryStore struct {
	state *memoryState
	inTx  bool
}

type memoryState struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	nextId int
	rows   map[int][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{tables: map[string]*memoryTable{}}}
}

func (s *MemoryStore) Products() RecordStore[Product] {
	return memoryRecords[Product]{state: s.state, table: "products"}
}

func (s *MemoryStore) Suppliers() RecordStore[Supplier] {
	return memoryRecords[Supplier]{state: s.state, table: "suppliers"}
}

func (s *MemoryStore) StockMovements() RecordStore[StockMovement] {
	return memoryRecords[StockMovement]{state: s.state, table: "stock_movements"}
}

func (s *MemoryStore) Orders() RecordStore[Order] {
	return memoryRecords[Order]{state: s.state, table: "orders"}
}

func (s *MemoryStore) OrderOutbox() RecordStore[OrderOutbox] {
	return memoryRecords[OrderOutbox]{state: s.state, table: "order_outboxes"}
}

// Transaction serializes top-level transactions and restores a snapshot of every table when fn fails.
// Writes made outside any transaction while one is running are not isolated from its rollback.
func (s *MemoryStore) Transaction(_ context.Context, fn func(tx Store) error) (err error) {
	if !s.inTx {
		s.state.txMu.Lock()
		defer s.state.txMu.Unlock()
	}
	snapshot := s.state.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.state.restore(snapshot)
			panic(r)
		}
	}()
	if err = fn(&MemoryStore{state: s.state, inTx: true}); err != nil {
		s.state.restore(snapshot)
	}
	return err
}

func (st *memoryState) snapshot() map[string]memoryTable {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]memoryTable, len(st.tables))
	for name, t := range st.tables {
		rows := make(map[int][]byte, len(t.rows))
		for id, b := range t.rows {
			rows[id] = b
		}
		out[name] = memoryTable{nextId: t.nextId, rows: rows}
	}
	return out
}

func (st *memoryState) restore(snapshot map[string]memoryTable) {
	st.mu.Lock()
	defer st.mu.Unlock()
	tables := make(map[string]*memoryTable, len(snapshot))
	for name, t := range snapshot {
		t := t
		tables[name] = &t
	}
	st.tables = tables
}

type memoryRecords[T any] struct {
	state *memoryState
	table string
}

func (r memoryRecords[T]) tableLocked() *memoryTable {
	t, ok := r.state.tables[r.table]
	if !ok {
		t = &memoryTable{rows: map[int][]byte{}}
		r.state.tables[r.table] = t
	}
	return t
}

func (r memoryRecords[T]) decode(b []byte) (*T, error) {
	var record T
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r memoryRecords[T]) Find(_ context.Context, filter Filter, order string, limit int) ([]*T, error) {
	r.state.mu.Lock()
	t := r.tableLocked()
	ids := make([]int, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var results []*T
	for _, id := range ids {
		record, err := r.decode(t.rows[id])
		if err != nil {
			r.state.mu.Unlock()
			return nil, err
		}
		if matchesFilter(reflect.ValueOf(record).Elem(), filter) {
			results = append(results, record)
		}
	}
	r.state.mu.Unlock()

	if order != "" {
		sortRecords(results, order)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r memoryRecords[T]) FindById(_ context.Context, id int) (*T, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	b, ok := r.tableLocked().rows[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return r.decode(b)
}

func (r memoryRecords[T]) Create(_ context.Context, record *T) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	t := r.tableLocked()
	t.nextId++

	v := reflect.ValueOf(record).Elem()
	if f, ok := fieldByColumn(v, "id"); ok {
		f.SetInt(int64(t.nextId))
	}
	now := time.Now()
	for _, col := range []string{"created_at", "updated_at"} {
		if f, ok := fieldByColumn(v, col); ok {
			if ts, isTime := f.Interface().(time.Time); isTime && ts.IsZero() {
				f.Set(reflect.ValueOf(now))
			}
		}
	}

	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	t.rows[t.nextId] = b
	return nil
}

func (r memoryRecords[T]) Update(_ context.Context, id int, patch map[string]interface{}) (*T, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	t := r.tableLocked()
	b, ok := t.rows[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	record, err := r.decode(b)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(record).Elem()
	for col, value := range patch {
		f, ok := fieldByColumn(v, col)
		if !ok {
			return nil, fmt.Errorf("%s: unknown column %q", r.table, col)
		}
		if err := setField(f, value); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.table, col, err)
		}
	}
	if f, ok := fieldByColumn(v, "updated_at"); ok {
		if _, isTime := f.Interface().(time.Time); isTime {
			f.Set(reflect.ValueOf(time.Now()))
		}
	}
	nb, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	t.rows[id] = nb
	return record, nil
}

func (r memoryRecords[T]) Delete(_ context.Context, id int) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	t := r.tableLocked()
	if _, ok := t.rows[id]; !ok {
		return utils.ErrorRecordNotFound
	}
	delete(t.rows, id)
	return nil
}

var memoryNaming = schema.NamingStrategy{}

func fieldByColumn(v reflect.Value, column string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if memoryNaming.ColumnName("", f.Name) == column {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, true
}

func valuesEqual(field reflect.Value, want interface{}) bool {
	fv, fok := indirect(field)
	wv, wok := indirect(reflect.ValueOf(want))
	if !fok || !wok || want == nil {
		return !fok && (!wok || want == nil)
	}
	return fmt.Sprint(fv.Interface()) == fmt.Sprint(wv.Interface())
}

func matchesFilter(v reflect.Value, filter Filter) bool {
	for col, want := range filter {
		f, ok := fieldByColumn(v, col)
		if !ok {
			return false
		}
		wv := reflect.ValueOf(want)
		if want != nil && wv.Kind() == reflect.Slice && wv.Type().Elem().Kind() != reflect.Uint8 {
			matched := false
			for i := 0; i < wv.Len(); i++ {
				if valuesEqual(f, wv.Index(i).Interface()) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if !valuesEqual(f, want) {
			return false
		}
	}
	return true
}

func setField(f reflect.Value, value interface{}) error {
	if value == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr && !rv.Type().AssignableTo(f.Type()) {
		if rv.IsNil() {
			f.Set(reflect.Zero(f.Type()))
			return nil
		}
		rv = rv.Elem()
	}
	switch {
	case rv.Type().AssignableTo(f.Type()):
		f.Set(rv)
	case f.Kind() == reflect.Ptr && rv.Type().AssignableTo(f.Type().Elem()):
		ptr := reflect.New(f.Type().Elem())
		ptr.Elem().Set(rv)
		f.Set(ptr)
	case rv.Type().ConvertibleTo(f.Type()):
		f.Set(rv.Convert(f.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", rv.Type(), f.Type())
	}
	return nil
}

func sortRecords[T any](records []*T, order string) {
	parts := strings.Fields(order)
	if len(parts) == 0 {
		return
	}
	column := parts[0]
	desc := len(parts) > 1 && strings.EqualFold(parts[1], "desc")
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := fieldByColumn(reflect.ValueOf(records[i]).Elem(), column)
		b, _ := fieldByColumn(reflect.ValueOf(records[j]).Elem(), column)
		c := compareValues(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b reflect.Value) int {
	if !a.IsValid() || !b.IsValid() {
		return 0
	}
	av, aok := indirect(a)
	bv, bok := indirect(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	switch av.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmpOrdered(av.Int(), bv.Int())
	case reflect.String:
		return strings.Compare(av.String(), bv.String())
	}
	if at, ok := av.Interface().(time.Time); ok {
		bt := bv.Interface().(time.Time)
		return at.Compare(bt)
	}
	return strings.Compare(fmt.Sprint(av.Interface()), fmt.Sprint(bv.Interface()))
}

func cmpOrdered(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
