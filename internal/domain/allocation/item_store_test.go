package allocation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Bandejas-api/internal/domain/allocation"
)

func TestItemStore_OperacionesBasicas(t *testing.T) {
	a := serviceItem("a", 1, "s1")
	b := serviceItem("b", 2)
	b.TrayID = "tray-2"
	store := allocation.NewItemStore(a, b)

	assert.Len(t, store.Get("tray-1"), 1)
	assert.Equal(t, []string{"tray-1", "tray-2"}, store.Trays())
	assert.Len(t, store.FindBySignature("tray-1", a.Signature()), 1)

	// Get devuelve copias: modificarlas no altera el store.
	got := store.Get("tray-1")[0]
	got.Identity[0].Serials[0] = "alterado"
	again, _ := store.Item("a")
	assert.Equal(t, "s1", again.Identity[0].Serials[0])

	a.Quantity = 9
	store.Upsert(a)
	assert.Equal(t, []string{"tray-1", "tray-2"}, store.Trays(), "el reemplazo conserva la posición")
	again, _ = store.Item("a")
	assert.Equal(t, 9, again.Quantity)

	assert.True(t, store.Remove("a"))
	assert.False(t, store.Remove("a"))
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, store.Get("tray-1"))
}
