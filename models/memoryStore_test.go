package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCrud(t *testing.T) {
	ctx := testContext()
	store := models.NewMemoryStore()

	a := &models.Supplier{Name: "A", IsActive: utils.NewTrue()}
	require.NoError(t, store.Suppliers().Create(ctx, a))
	b := &models.Supplier{Name: "B", IsActive: utils.NewFalse()}
	require.NoError(t, store.Suppliers().Create(ctx, b))
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.False(t, a.CreatedAt.IsZero())

	found, err := store.Suppliers().FindById(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", found.Name)

	active, err := store.Suppliers().Find(ctx, models.Filter{"is_active": true}, "", 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	both, err := store.Suppliers().Find(ctx, models.Filter{"id": []int{a.ID, b.ID}}, "id desc", 0)
	require.NoError(t, err)
	require.Len(t, both, 2)
	assert.Equal(t, b.ID, both[0].ID)

	limited, err := store.Suppliers().Find(ctx, nil, "name asc", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "A", limited[0].Name)

	updated, err := store.Suppliers().Update(ctx, a.ID, map[string]interface{}{"name": "A2", "is_active": false})
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Name)
	assert.False(t, *updated.IsActive)

	_, err = store.Suppliers().Update(ctx, a.ID, map[string]interface{}{"no_such_column": 1})
	assert.Error(t, err)

	require.NoError(t, store.Suppliers().Delete(ctx, a.ID))
	_, err = store.Suppliers().FindById(ctx, a.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
	assert.ErrorIs(t, store.Suppliers().Delete(ctx, a.ID), utils.ErrorRecordNotFound)
}

func TestMemoryStoreRecordsAreCopies(t *testing.T) {
	ctx := testContext()
	store := models.NewMemoryStore()
	s := &models.Supplier{Name: "A"}
	require.NoError(t, store.Suppliers().Create(ctx, s))

	s.Name = "changed"
	found, err := store.Suppliers().FindById(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", found.Name)
}

func TestMemoryStoreTransactionRollsBack(t *testing.T) {
	ctx := testContext()
	store := models.NewMemoryStore()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx models.Store) error {
		require.NoError(t, tx.Suppliers().Create(ctx, &models.Supplier{Name: "A"}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	all, err := store.Suppliers().Find(ctx, nil, "", 0)
	require.NoError(t, err)
	assert.Empty(t, all)

	err = store.Transaction(ctx, func(tx models.Store) error {
		require.NoError(t, tx.Suppliers().Create(ctx, &models.Supplier{Name: "kept"}))
		nestedErr := tx.Transaction(ctx, func(inner models.Store) error {
			require.NoError(t, inner.Suppliers().Create(ctx, &models.Supplier{Name: "dropped"}))
			return boom
		})
		assert.ErrorIs(t, nestedErr, boom)
		return nil
	})
	require.NoError(t, err)
	all, err = store.Suppliers().Find(ctx, nil, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].Name)
}
