package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
tables:
  - name: orders
    displayName: Orders
  - name: order_lines
    displayName: Order lines
    description: One row per order line
procedures:
  - name: build_period_orders
    displayName: Build period orders
    parameters:
      - {name: start_date, type: integer, required: true}
      - {name: end_date, type: varchar(8), required: true}
    outputTables: [orders, order_lines]
`

func TestParse_RegistersTablesAndProcedures(t *testing.T) {
	cat, err := Parse(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	assert.Equal(t, 2, cat.TableCount())

	lines, ok := cat.Table("order_lines")
	require.True(t, ok)
	assert.Equal(t, "Order lines", lines.DisplayName)
	assert.Equal(t, "One row per order line", lines.Description)

	proc, ok := cat.Procedure("build_period_orders")
	require.True(t, ok)
	require.Len(t, proc.Parameters, 2)
	assert.Equal(t, core.ParamInt, proc.Parameters[0].Type)
	assert.Equal(t, core.ParamText, proc.Parameters[1].Type)
	assert.Equal(t, []string{"orders", "order_lines"}, proc.OutputTables)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("tables:\n  - name: orders\n    colour: blue\n"))
	require.Error(t, err)
}

func TestParse_RejectsUnknownOutputTable(t *testing.T) {
	doc := `
tables:
  - name: orders
procedures:
  - name: p
    outputTables: [missing]
`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output table missing")
}

func TestParse_Empty(t *testing.T) {
	cat, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, cat.TableCount())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	cat, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, cat.Procedures(), 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
