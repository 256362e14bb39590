package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/repositories/memory"
)

const bom = `Level,Part Number,Type,Qty,Description
0,TOP,Assembly,1,Top
1,BOLT,Purchased,%s,Bolt
1,NUT,Purchased,2,Nut
`

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u1.csv"), []byte(fmt.Sprintf(bom, "4")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u2.csv"), []byte(fmt.Sprintf(bom, "6")), 0o644))
	manifest := `so_number: SO-9
tools:
  - {label: u1, tool_number: T1, bom: u1.csv}
  - {label: u2, tool_number: T2, bom: u2.csv}
`
	path := filepath.Join(dir, "import.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return path
}

// run executes one CLI invocation against a shared store
func run(t *testing.T, store repositories.Store, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "")

	app := &App{}
	app.newStore = func(context.Context) (repositories.Store, func(), error) {
		return store, func() {}, nil
	}
	root := app.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func imported(t *testing.T) (*memory.Store, *dto.ImportResult) {
	t.Helper()
	store := memory.NewStore()
	out, err := run(t, store, "import", "--manifest", writeManifest(t), "--execute", "--format", "json")
	require.NoError(t, err)
	var result dto.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	return store, &result
}

func TestImport_PreviewWritesNothing(t *testing.T) {
	store := memory.NewStore()
	out, err := run(t, store, "import", "--manifest", writeManifest(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Import Preview: SO-9")
	assert.Contains(t, out, "Line Items: 3 (1 shared, 2 tiered)")

	orders, err := store.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestImport_Execute(t *testing.T) {
	_, result := imported(t)
	assert.True(t, result.Executed)
	assert.NotEmpty(t, result.OrderID)
	assert.Len(t, result.LineItems, 3)
}

func TestProgressAndPick(t *testing.T) {
	store, result := imported(t)
	var nut *entities.LineItem
	for _, li := range result.LineItems {
		if li.PartNumber == "NUT" {
			nut = li
		}
	}
	require.NotNil(t, nut)

	out, err := run(t, store, "pick", "--line-item", nut.ID, "--tool", result.Tools[1].ID, "--qty", "2", "--by", "ann")
	require.NoError(t, err)
	assert.Contains(t, out, "pick ")

	out, err = run(t, store, "progress", "--order", "SO-9", "--format", "json")
	require.NoError(t, err)
	var report dto.ProgressReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, entities.Quantity(14), report.TotalNeeded)
	assert.Equal(t, entities.Quantity(2), report.TotalPicked)
}

func TestReconcileMerge_DryRunByDefault(t *testing.T) {
	store, result := imported(t)

	out, err := run(t, store, "reconcile", "merge", "--order", "SO-9")
	require.NoError(t, err)
	assert.Contains(t, out, "MERGE SO-9 (DRY RUN)")
	assert.Contains(t, out, "Re-run with --execute")
	items, err := store.ListLineItems(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = run(t, store, "reconcile", "merge", "--order", "SO-9", "--execute")
	require.NoError(t, err)
	items, err = store.ListLineItems(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReconcileExcess_RequiresConfirm(t *testing.T) {
	store, result := imported(t)
	ctx := context.Background()

	var bolt *entities.LineItem
	for _, li := range result.LineItems {
		if li.PartNumber == "BOLT" && li.QtyPerUnit == 4 {
			bolt = li
		}
	}
	require.NotNil(t, bolt)
	stray, _ := entities.NewPick(bolt.ID, result.Tools[1].ID, 1, "bob", time.Now(), "")
	require.NoError(t, store.CreatePick(ctx, stray))

	out, err := run(t, store, "reconcile", "excess", "--order", "SO-9")
	require.NoError(t, err)
	assert.Contains(t, out, "Excess Picks: 1")

	_, err = run(t, store, "reconcile", "excess", "--order", "SO-9", "--execute")
	assert.Equal(t, ExitConfirmationRequired, ExitCode(err))
	_, err = store.GetPick(ctx, stray.ID)
	require.NoError(t, err)

	_, err = run(t, store, "reconcile", "excess", "--order", "SO-9", "--execute", "--confirm")
	require.NoError(t, err)
	_, err = store.GetPick(ctx, stray.ID)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestExitCodes(t *testing.T) {
	store := memory.NewStore()

	_, err := run(t, store, "reconcile", "merge")
	assert.Equal(t, ExitUsage, ExitCode(err))

	_, err = run(t, store, "audit", "--order", "SO-404")
	assert.Equal(t, ExitNotFound, ExitCode(err))

	_, err = run(t, store, "import", "--manifest", writeManifest(t), "--format", "xml")
	assert.Equal(t, ExitError, ExitCode(err))
}
