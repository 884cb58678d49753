package acquire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/secop-cli/internal/config"
	"github.com/sells-group/secop-cli/internal/model"
)

func historyRecord(key, entity string) model.CleanedRecord {
	return model.CleanedRecord{
		Columns: []string{"proceso_de_compra", "nombre_entidad"},
		Strings: map[string]string{
			"proceso_de_compra": key,
			"nombre_entidad":    entity,
		},
	}
}

func newTestHistory(t *testing.T) *History {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	return NewHistory(path, config.HistoryConfig{Delimiter: ";", Encoding: "utf-8-sig"})
}

func TestHistoryMerge_CreatesAndAppends(t *testing.T) {
	h := newTestHistory(t)

	total, err := h.Merge([]model.CleanedRecord{
		historyRecord("MC-001", "Entidad A"),
		historyRecord("MC-002", "Entidad B"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = h.Merge([]model.CleanedRecord{historyRecord("MC-003", "Entidad C")})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	rows, err := h.Load()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "MC-001", rows[0].Values["proceso_de_compra"])
	assert.Equal(t, "MC-003", rows[2].Values["proceso_de_compra"])
}

func TestHistoryMerge_LastAppendedWins(t *testing.T) {
	h := newTestHistory(t)

	_, err := h.Merge([]model.CleanedRecord{
		historyRecord("MC-001", "Entidad vieja"),
		historyRecord("MC-002", "Entidad B"),
	})
	require.NoError(t, err)

	total, err := h.Merge([]model.CleanedRecord{historyRecord("MC-001", "Entidad nueva")})
	require.NoError(t, err)
	assert.Equal(t, 2, total, "updating a key must not grow the store")

	rows, err := h.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Updated in place: position kept, payload replaced.
	assert.Equal(t, "MC-001", rows[0].Values["proceso_de_compra"])
	assert.Equal(t, "Entidad nueva", rows[0].Values["nombre_entidad"])
}

func TestHistoryMerge_DuplicateKeyWithinBatch(t *testing.T) {
	h := newTestHistory(t)

	total, err := h.Merge([]model.CleanedRecord{
		historyRecord("MC-001", "primera"),
		historyRecord("MC-001", "segunda"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	rows, err := h.Load()
	require.NoError(t, err)
	assert.Equal(t, "segunda", rows[0].Values["nombre_entidad"])
}

func TestHistoryMerge_KeylessRowsKept(t *testing.T) {
	h := newTestHistory(t)

	_, err := h.Merge([]model.CleanedRecord{
		historyRecord("", "sin clave"),
		historyRecord("", "también sin clave"),
	})
	require.NoError(t, err)

	rows, err := h.Load()
	require.NoError(t, err)
	assert.Len(t, rows, 2, "keyless rows append, never merge")
}

func TestHistoryMerge_WidensHeaderForNewColumns(t *testing.T) {
	h := newTestHistory(t)

	_, err := h.Merge([]model.CleanedRecord{historyRecord("MC-001", "Entidad A")})
	require.NoError(t, err)

	valor := 123.0
	wide := model.CleanedRecord{
		Columns: []string{"proceso_de_compra", "nombre_entidad", "valor_del_contrato"},
		Strings: map[string]string{
			"proceso_de_compra": "MC-002",
			"nombre_entidad":    "Entidad B",
		},
		Money: map[string]*float64{"valor_del_contrato": &valor},
	}
	total, err := h.Merge([]model.CleanedRecord{wide})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	raw, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "valor_del_contrato")
	assert.Contains(t, string(raw), "123")

	// Rows written under the narrower header read back with empty cells,
	// not truncated ones.
	rows, err := h.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t,
		[]string{"proceso_de_compra", "nombre_entidad", "valor_del_contrato"},
		rows[0].Columns)
	assert.Equal(t, "", rows[0].Values["valor_del_contrato"])
	assert.Equal(t, "123", rows[1].Values["valor_del_contrato"])
}

func TestHistoryMerge_WritesBOM(t *testing.T) {
	h := newTestHistory(t)
	_, err := h.Merge([]model.CleanedRecord{historyRecord("MC-001", "Entidad A")})
	require.NoError(t, err)

	raw, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, raw[:3])
}

func TestHistoryMerge_NoTempFileLeftBehind(t *testing.T) {
	h := newTestHistory(t)
	_, err := h.Merge([]model.CleanedRecord{historyRecord("MC-001", "Entidad A")})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(h.path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "history.csv", entries[0].Name())
}

func TestHistoryLoad_MissingFileIsEmpty(t *testing.T) {
	h := newTestHistory(t)

	rows, err := h.Load()

	require.NoError(t, err)
	assert.Empty(t, rows)
}
