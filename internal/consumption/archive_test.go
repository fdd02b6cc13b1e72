package consumption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
)

func TestArchive_RoundTrip(t *testing.T) {
	a := storedRecord("a", "plant-a", day(2026, 1, 1))
	a.Activities = []carbon.ActivityEntry{{Type: "refrigerant_kg", Quantity: 0.5}}
	b := storedRecord("b", "plant-b", day(2026, 2, 1))
	b.Notes = "estimated from invoices"

	var buf bytes.Buffer
	n, err := WriteArchive(&buf, []Record{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// xz stream magic
	assert.Equal(t, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}, buf.Bytes()[:6])

	got, err := ReadArchive(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, a.Activities, got[0].Activities)
	assert.Equal(t, b.Notes, got[1].Notes)
	assert.True(t, b.CreatedAt.Equal(got[1].CreatedAt))
}

func TestArchive_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteArchive(&buf, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := ReadArchive(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadArchive_NotXZ(t *testing.T) {
	_, err := ReadArchive(bytes.NewReader([]byte(`{"id":"a"}`)))
	assert.Error(t, err)
}
