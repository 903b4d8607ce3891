package shelving

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/matryer/is"
	"github.com/samber/lo"
)

func TestNewShelvesAreSpacedAndNumbered(t *testing.T) {
	is, sc := testScene(t)

	a, ok := sc.CreateShelf()
	is.True(ok)
	b, ok := sc.CreateShelf()
	is.True(ok)

	is.Equal(a.Code, "EST-001")
	is.Equal(a.Name, "Estante 1")
	is.Equal(a.Status, types.ShelfActive)
	is.Equal(a.Position, types.Vector3{0, 0.75, 0})
	is.Equal(a.Dimensions, types.Dimensions{Width: 2, Height: 1.5, Depth: 0.8})
	is.Equal(len(a.Rows), 0)

	is.Equal(b.Code, "EST-002")
	is.Equal(b.Position, types.Vector3{3.5, 0.75, 0})

	state := sc.Snapshot()
	is.Equal(state.Selection.ShelfID, b.ID)
	is.Equal(*state.Selection.Focus, b.Position)
}

func TestDeletingFirstShelfMovesTheNextIntoItsSlot(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	b, _ := sc.CreateShelf()

	is.True(sc.DeleteShelf(a.ID, true))

	state := sc.Snapshot()
	is.Equal(len(state.Shelves), 1)
	is.Equal(state.Shelves[0].ID, b.ID)
	is.Equal(state.Shelves[0].Position[0], 0.0)
}

func TestShelfCodesAreNotReusedAfterDelete(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	sc.CreateShelf()
	sc.DeleteShelf(a.ID, true)

	c, _ := sc.CreateShelf()
	is.Equal(c.Code, "EST-003")
	is.Equal(c.Position[0], 3.5)
}

func TestDeleteWithoutConfirmationIsIgnored(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	row, _ := sc.CreateRow(a.ID)

	is.True(!sc.DeleteShelf(a.ID, false))
	is.True(!sc.DeleteRow(a.ID, row.ID, false))

	state := sc.Snapshot()
	is.Equal(len(state.Shelves), 1)
	is.Equal(len(state.Shelves[0].Rows), 1)
}

func TestDeletingSelectedShelfClearsSelection(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	is.True(sc.SelectShelf(a.ID))
	is.True(sc.DeleteShelf(a.ID, true))

	state := sc.Snapshot()
	is.Equal(state.Selection, types.Selection{})
}

func TestSelectionFollowsShelfThatMoved(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	b, _ := sc.CreateShelf()

	is.True(sc.SelectShelf(b.ID))
	is.True(sc.DeleteShelf(a.ID, true))

	state := sc.Snapshot()
	is.Equal(state.Selection.ShelfID, b.ID)
	is.Equal(*state.Selection.Focus, types.Vector3{0, 0.75, 0})
}

func TestAShelfHoldsAtMostFourRows(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()

	for i := 0; i < MaxRowsPerShelf; i++ {
		row, ok := sc.CreateRow(a.ID)
		is.True(ok)
		is.Equal(row.Number, i+1)
		is.Equal(row.Crop, DefaultCrop)
		is.True(!row.LightOn)
		is.True(!row.IrrigationActive)
	}

	_, ok := sc.CreateRow(a.ID)
	is.True(!ok)

	is.Equal(len(sc.Snapshot().Shelves[0].Rows), MaxRowsPerShelf)
}

func TestAddRowEnforcesCapacity(t *testing.T) {
	is := is.New(t)

	shelf := types.Shelf{}
	for i := 0; i < 10; i++ {
		addRow(&shelf, fmt.Sprintf("row-%d", i))
	}

	is.Equal(len(shelf.Rows), MaxRowsPerShelf)
}

func TestDeletingMiddleRowRenumbersTheRest(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	r1, _ := sc.CreateRow(a.ID)
	r2, _ := sc.CreateRow(a.ID)
	r3, _ := sc.CreateRow(a.ID)

	is.True(sc.SelectRow(a.ID, r2.ID))
	is.True(sc.DeleteRow(a.ID, r2.ID, true))

	rows := sc.Snapshot().Shelves[0].Rows
	is.Equal(lo.Map(rows, func(r types.Row, _ int) int { return r.Number }), []int{1, 2})
	is.Equal(lo.Map(rows, func(r types.Row, _ int) string { return r.ID }), []string{r1.ID, r3.ID})

	state := sc.Snapshot()
	is.Equal(state.Selection.ShelfID, a.ID)
	is.Equal(state.Selection.RowID, "")
	is.Equal(*state.Selection.Focus, a.Position)
}

func TestToggleOnlyChangesTheTargetedRow(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	b, _ := sc.CreateShelf()
	r1, _ := sc.CreateRow(a.ID)
	sc.CreateRow(a.ID)
	sc.CreateRow(b.ID)

	before := sc.Snapshot()

	row, ok := sc.ToggleDeviceFlag(a.ID, r1.ID, types.FlagLight)
	is.True(ok)
	is.True(row.LightOn)
	is.True(!row.IrrigationActive)

	after := sc.Snapshot()
	is.Equal(after.Shelves[0].Rows[1], before.Shelves[0].Rows[1])
	is.Equal(after.Shelves[1], before.Shelves[1])

	row, ok = sc.ToggleDeviceFlag(a.ID, r1.ID, types.FlagIrrigation)
	is.True(ok)
	is.True(row.LightOn)
	is.True(row.IrrigationActive)

	_, ok = sc.ToggleDeviceFlag(a.ID, r1.ID, types.DeviceFlag("heat"))
	is.True(!ok)
}

func TestMonitoringModeIsReadOnly(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	row, _ := sc.CreateRow(a.ID)

	is.NoErr(sc.SetMode(types.ModeMonitoring))
	before := sc.Snapshot()

	_, ok := sc.CreateShelf()
	is.True(!ok)
	_, ok = sc.CreateRow(a.ID)
	is.True(!ok)
	_, ok = sc.ToggleDeviceFlag(a.ID, row.ID, types.FlagLight)
	is.True(!ok)
	is.True(!sc.DeleteRow(a.ID, row.ID, true))
	is.True(!sc.DeleteShelf(a.ID, true))

	is.Equal(sc.Snapshot(), before)
}

func TestNewSceneStartsInMonitoringMode(t *testing.T) {
	is := is.New(t)

	sc := NewScene(1, nil)
	is.Equal(sc.Mode(), types.ModeMonitoring)

	_, ok := sc.CreateShelf()
	is.True(!ok)
}

func TestUnknownModeIsRejected(t *testing.T) {
	is, sc := testScene(t)

	err := sc.SetMode(types.Mode("party"))
	is.True(errors.Is(err, validation.ErrValidation))
	is.Equal(sc.Mode(), types.ModeEditing)

	is.NoErr(sc.SetMode(types.ModeConfiguration))
	_, ok := sc.CreateShelf()
	is.True(ok)
}

func TestRowFocusIsPlacedInsideTheShelf(t *testing.T) {
	is, sc := testScene(t)

	sc.CreateShelf()
	b, _ := sc.CreateShelf()
	sc.CreateRow(b.ID)
	r2, _ := sc.CreateRow(b.ID)

	is.True(sc.SelectRow(b.ID, r2.ID))

	focus := *sc.Snapshot().Selection.Focus
	is.True(near(focus, types.Vector3{3.5, 0.75 + 0.75 - 0.1 - 0.5, 0}))
}

func TestRowFocusFollowsShelfRotation(t *testing.T) {
	is := is.New(t)

	shelf := types.Shelf{
		Position:   types.Vector3{1, 0, 0},
		Rotation:   types.Vector3{0, 0, math.Pi / 2},
		Dimensions: types.Dimensions{Height: 2.2},
	}

	// offset (0, 1, 0) turned a quarter around Z points along -X
	is.True(near(rowFocus(shelf, 0), types.Vector3{0, 0, 0}))

	shelf.Rotation = types.Vector3{math.Pi / 2, 0, 0}
	is.True(near(rowFocus(shelf, 0), types.Vector3{1, 0, 1}))
}

func TestRestoreRollsBackToSnapshot(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	before := sc.Snapshot()

	sc.CreateRow(a.ID)
	sc.CreateShelf()

	sc.Restore(before)
	is.Equal(sc.Snapshot(), before)
}

func TestSnapshotSharesNoMemory(t *testing.T) {
	is, sc := testScene(t)

	a, _ := sc.CreateShelf()
	sc.CreateRow(a.ID)

	state := sc.Snapshot()
	state.Shelves[0].Rows[0].LightOn = true
	state.Selection.Focus[0] = 99

	fresh := sc.Snapshot()
	is.True(!fresh.Shelves[0].Rows[0].LightOn)
	is.True(fresh.Selection.Focus[0] != 99)
}

func TestSummaryCountsShelvesRowsAndStatus(t *testing.T) {
	is := is.New(t)

	sc := NewScene(1, []types.Shelf{
		{ID: "a", Code: "EST-004", Status: types.ShelfActive, Rows: []types.Row{{ID: "1"}, {ID: "2"}}},
		{ID: "b", Code: "EST-007", Status: types.ShelfMaintenance, Rows: []types.Row{{ID: "3"}}},
	})

	is.Equal(sc.Summary(), types.SceneSummary{Shelves: 2, Rows: 3, Active: 1, Maintenance: 1, Mode: types.ModeMonitoring})

	is.NoErr(sc.SetMode(types.ModeEditing))
	c, _ := sc.CreateShelf()
	is.Equal(c.Code, "EST-008")
}

func TestLayoutHoldsUnderRandomEditSequences(t *testing.T) {
	is, sc := testScene(t)
	rnd := rand.New(rand.NewSource(20240611))

	pickShelf := func(state types.SceneState) (types.Shelf, bool) {
		if len(state.Shelves) == 0 {
			return types.Shelf{}, false
		}
		return state.Shelves[rnd.Intn(len(state.Shelves))], true
	}

	pickRow := func(state types.SceneState) (types.Shelf, types.Row, bool) {
		shelf, ok := pickShelf(state)
		if !ok || len(shelf.Rows) == 0 {
			return types.Shelf{}, types.Row{}, false
		}
		return shelf, shelf.Rows[rnd.Intn(len(shelf.Rows))], true
	}

	for step := 0; step < 5000; step++ {
		before := sc.Snapshot()

		switch rnd.Intn(9) {
		case 0, 1:
			sc.CreateShelf()
		case 2:
			if shelf, ok := pickShelf(before); ok {
				sc.DeleteShelf(shelf.ID, rnd.Intn(4) > 0)
			}
		case 3, 4:
			if shelf, ok := pickShelf(before); ok {
				sc.CreateRow(shelf.ID)
			}
		case 5:
			if shelf, row, ok := pickRow(before); ok {
				sc.DeleteRow(shelf.ID, row.ID, rnd.Intn(4) > 0)
			}
		case 6:
			if shelf, row, ok := pickRow(before); ok {
				sc.ToggleDeviceFlag(shelf.ID, row.ID, lo.Ternary(rnd.Intn(2) == 0, types.FlagLight, types.FlagIrrigation))
			}
		case 7:
			if shelf, row, ok := pickRow(before); ok {
				sc.SelectRow(shelf.ID, row.ID)
			}
		case 8:
			is.NoErr(sc.SetMode(lo.Ternary(sc.Mode() == types.ModeMonitoring, types.ModeEditing, types.ModeMonitoring)))
		}

		after := sc.Snapshot()

		if before.Mode == types.ModeMonitoring && after.Mode == types.ModeMonitoring {
			is.Equal(after.Shelves, before.Shelves) // monitoring mode is read-only
		}

		for i, shelf := range after.Shelves {
			is.Equal(shelf.Position, types.Vector3{float64(i) * 3.5, 0.75, 0})
			is.True(len(shelf.Rows) <= MaxRowsPerShelf)

			for j, row := range shelf.Rows {
				is.Equal(row.Number, j+1)
			}
		}

		if id := after.Selection.ShelfID; id != "" {
			is.True(lo.ContainsBy(after.Shelves, func(s types.Shelf) bool { return s.ID == id }))
		}
	}
}

func testScene(t *testing.T) (*is.I, *Scene) {
	is := is.New(t)

	sc := NewScene(1, nil)
	is.NoErr(sc.SetMode(types.ModeEditing))

	n := 0
	sc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}

	return is, sc
}

func near(a, b types.Vector3) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}
