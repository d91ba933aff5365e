package contacts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSliceLoader(t *testing.T) {
	cs := []Contact{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
	}
	l := NewSliceLoader(cs)

	first, ok := l.Next()
	require.True(t, ok)
	assert.Equal(t, "a@example.com", first.Email)

	second, ok := l.Next()
	require.True(t, ok)
	assert.Equal(t, "b@example.com", second.Email)

	_, ok = l.Next()
	assert.False(t, ok)
	assert.NoError(t, l.Err())
}

func writeTestSheet(t *testing.T, header []string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestXLSXLoader(t *testing.T) {
	path := writeTestSheet(t,
		[]string{"Nombre", "Email", "Telefono", "VehiculoInteres"},
		[][]string{
			{"Ana", "ana@example.com", "5512345678", "SUV 2024"},
			{"Luis", "luis@example.com", "", ""},
		},
	)

	l, err := NewXLSXLoader(path)
	require.NoError(t, err)

	first, ok := l.Next()
	require.True(t, ok)
	assert.Equal(t, "Ana", first.Nombre)
	assert.Equal(t, "ana@example.com", first.Email)
	assert.Equal(t, "5512345678", first.Telefono)
	assert.Equal(t, "SUV 2024", first.VehiculoInteres)

	second, ok := l.Next()
	require.True(t, ok)
	assert.Equal(t, "luis@example.com", second.Email)
	assert.Empty(t, second.Telefono)

	_, ok = l.Next()
	assert.False(t, ok)
	assert.NoError(t, l.Err())
}

func TestXLSXLoader_AliasHeaders(t *testing.T) {
	path := writeTestSheet(t,
		[]string{"name", "correo", "phone"},
		[][]string{{"Ana", "ana@example.com", "5512345678"}},
	)

	l, err := NewXLSXLoader(path)
	require.NoError(t, err)

	c, ok := l.Next()
	require.True(t, ok)
	assert.Equal(t, "Ana", c.Nombre)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.Equal(t, "5512345678", c.Telefono)
}

func TestXLSXLoader_RejectsSheetWithoutAddressColumns(t *testing.T) {
	path := writeTestSheet(t,
		[]string{"nombre", "vehiculo"},
		[][]string{{"Ana", "SUV"}},
	)

	_, err := NewXLSXLoader(path)
	assert.Error(t, err)
}
