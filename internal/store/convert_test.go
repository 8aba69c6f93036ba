package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRecords_SortedByID(t *testing.T) {
	snap := emptySnapshot(CollectionSuppliers, 1)
	snap.Docs["c"] = Document{"name": "C"}
	snap.Docs["a"] = Document{"name": "A"}
	snap.Docs["b"] = Document{"name": "B"}

	records := ToRecords(snap)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{records[0].ID, records[1].ID, records[2].ID})
	assert.Equal(t, "A", records[0].Data["name"])
}

func TestToRecords_AbsentCollection(t *testing.T) {
	records := ToRecords(Snapshot{Collection: CollectionBatches})
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

type sample struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Expiry   *string `json:"expiryDate"`
	Skip     string  `json:"-"`
}

func TestEncodeDecode(t *testing.T) {
	doc, err := Encode(sample{Name: "Ibuprofen", Quantity: 2.5, Skip: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen", doc["name"])
	assert.Equal(t, 2.5, doc["quantity"])
	assert.Contains(t, doc, "expiryDate")
	assert.Nil(t, doc["expiryDate"])
	assert.NotContains(t, doc, "Skip")

	var out sample
	require.NoError(t, Decode(Document{"name": "Ibuprofen", "quantity": float64(3), "expiryDate": "2025-01-31"}, &out))
	assert.Equal(t, "Ibuprofen", out.Name)
	assert.Equal(t, 3.0, out.Quantity)
	require.NotNil(t, out.Expiry)
	assert.Equal(t, "2025-01-31", *out.Expiry)
}

func TestEncode_RejectsNonObject(t *testing.T) {
	_, err := Encode([]int{1, 2})
	assert.Error(t, err)
}

func TestDecode_TypeMismatch(t *testing.T) {
	var out sample
	err := Decode(Document{"quantity": "lots"}, &out)
	assert.Error(t, err)
}
