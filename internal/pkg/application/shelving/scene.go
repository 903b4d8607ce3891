package shelving

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

const (
	MaxRowsPerShelf int    = 4
	DefaultCrop     string = "New crop"
)

var ErrUnknownMode = fmt.Errorf("%w: unknown scene mode", validation.ErrValidation)

// Scene is the shelf and row hierarchy of one laboratory module. Every change to the
// hierarchy goes through its methods, which keep positions, numbering and selection
// consistent after each operation.
type Scene struct {
	mu sync.Mutex

	moduleID  uint
	mode      types.Mode
	shelves   []types.Shelf
	selection types.Selection
	sequence  int

	newID func() string
}

func NewScene(moduleID uint, shelves []types.Shelf) *Scene {
	s := &Scene{
		moduleID: moduleID,
		mode:     types.ModeMonitoring,
		shelves:  cloneShelves(shelves),
		newID:    uuid.NewString,
	}

	for _, shelf := range s.shelves {
		var n int
		if _, err := fmt.Sscanf(shelf.Code, "EST-%d", &n); err == nil && n > s.sequence {
			s.sequence = n
		}
	}

	if s.sequence < len(s.shelves) {
		s.sequence = len(s.shelves)
	}

	return s
}

func (s *Scene) Mode() types.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mode
}

func (s *Scene) SetMode(mode types.Mode) error {
	switch mode {
	case types.ModeMonitoring, types.ModeEditing, types.ModeConfiguration:
	default:
		return fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
	return nil
}

func (s *Scene) CreateShelf() (types.Shelf, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createShelf()
}

func (s *Scene) DeleteShelf(id string, confirm bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteShelf(id, confirm)
}

func (s *Scene) CreateRow(shelfID string) (types.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createRow(shelfID)
}

func (s *Scene) DeleteRow(shelfID, rowID string, confirm bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteRow(shelfID, rowID, confirm)
}

func (s *Scene) ToggleDeviceFlag(shelfID, rowID string, flag types.DeviceFlag) (types.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.toggleDeviceFlag(shelfID, rowID, flag)
}

func (s *Scene) SelectShelf(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectShelf(id)
}

func (s *Scene) SelectRow(shelfID, rowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectRow(shelfID, rowID)
}

func (s *Scene) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = types.Selection{}
}

// Snapshot returns a copy of the scene that shares no memory with it.
func (s *Scene) Snapshot() types.SceneState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

func (s *Scene) Restore(state types.SceneState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restore(state)
}

func (s *Scene) Summary() types.SceneSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return summarize(s.shelves, s.mode)
}

func (s *Scene) editable() bool {
	return s.mode != types.ModeMonitoring
}

func (s *Scene) createShelf() (types.Shelf, bool) {
	if !s.editable() {
		return types.Shelf{}, false
	}

	s.sequence++

	shelf := types.Shelf{
		ID:         s.newID(),
		Name:       fmt.Sprintf("Estante %d", s.sequence),
		Code:       fmt.Sprintf("EST-%03d", s.sequence),
		Status:     types.ShelfActive,
		Position:   shelfPosition(len(s.shelves)),
		Dimensions: defaultDimensions,
		Rows:       []types.Row{},
	}

	s.shelves = append(s.shelves, shelf)

	focus := shelf.Position
	s.selection = types.Selection{ShelfID: shelf.ID, Focus: &focus}

	return cloneShelf(shelf), true
}

func (s *Scene) deleteShelf(id string, confirm bool) bool {
	if !confirm || !s.editable() {
		return false
	}

	i := s.indexOfShelf(id)
	if i < 0 {
		return false
	}

	s.shelves = slices.Delete(s.shelves, i, i+1)

	for idx := range s.shelves {
		s.shelves[idx].Position[0] = shelfPosition(idx)[0]
	}

	if s.selection.ShelfID == id {
		s.selection = types.Selection{}
	} else {
		s.refocus()
	}

	return true
}

func (s *Scene) createRow(shelfID string) (types.Row, bool) {
	if !s.editable() {
		return types.Row{}, false
	}

	i := s.indexOfShelf(shelfID)
	if i < 0 {
		return types.Row{}, false
	}

	row, ok := addRow(&s.shelves[i], s.newID())
	if !ok {
		return types.Row{}, false
	}

	focus := rowFocus(s.shelves[i], len(s.shelves[i].Rows)-1)
	s.selection = types.Selection{ShelfID: shelfID, RowID: row.ID, Focus: &focus}

	return row, true
}

// addRow appends a row unless the shelf is already full.
func addRow(shelf *types.Shelf, id string) (types.Row, bool) {
	if len(shelf.Rows) >= MaxRowsPerShelf {
		return types.Row{}, false
	}

	row := types.Row{
		ID:     id,
		Number: len(shelf.Rows) + 1,
		Crop:   DefaultCrop,
	}

	shelf.Rows = append(shelf.Rows, row)

	return row, true
}

func (s *Scene) deleteRow(shelfID, rowID string, confirm bool) bool {
	if !confirm || !s.editable() {
		return false
	}

	i := s.indexOfShelf(shelfID)
	if i < 0 {
		return false
	}

	shelf := &s.shelves[i]

	j := slices.IndexFunc(shelf.Rows, func(r types.Row) bool { return r.ID == rowID })
	if j < 0 {
		return false
	}

	shelf.Rows = slices.Delete(shelf.Rows, j, j+1)
	for n := range shelf.Rows {
		shelf.Rows[n].Number = n + 1
	}

	if s.selection.RowID == rowID {
		focus := shelf.Position
		s.selection = types.Selection{ShelfID: shelfID, Focus: &focus}
	} else {
		s.refocus()
	}

	return true
}

func (s *Scene) toggleDeviceFlag(shelfID, rowID string, flag types.DeviceFlag) (types.Row, bool) {
	if !s.editable() {
		return types.Row{}, false
	}

	row := s.row(shelfID, rowID)
	if row == nil {
		return types.Row{}, false
	}

	switch flag {
	case types.FlagLight:
		row.LightOn = !row.LightOn
	case types.FlagIrrigation:
		row.IrrigationActive = !row.IrrigationActive
	default:
		return types.Row{}, false
	}

	return *row, true
}

// applyDeviceState writes flag values reported by the devices themselves, which is
// why the mode of the scene does not apply.
func (s *Scene) applyDeviceState(shelfID, rowID string, lightOn, irrigationActive *bool) (types.Row, bool) {
	row := s.row(shelfID, rowID)
	if row == nil {
		return types.Row{}, false
	}

	changed := false

	if lightOn != nil && *lightOn != row.LightOn {
		row.LightOn = *lightOn
		changed = true
	}

	if irrigationActive != nil && *irrigationActive != row.IrrigationActive {
		row.IrrigationActive = *irrigationActive
		changed = true
	}

	return *row, changed
}

func (s *Scene) selectShelf(id string) bool {
	i := s.indexOfShelf(id)
	if i < 0 {
		return false
	}

	focus := s.shelves[i].Position
	s.selection = types.Selection{ShelfID: id, Focus: &focus}

	return true
}

func (s *Scene) selectRow(shelfID, rowID string) bool {
	i := s.indexOfShelf(shelfID)
	if i < 0 {
		return false
	}

	j := slices.IndexFunc(s.shelves[i].Rows, func(r types.Row) bool { return r.ID == rowID })
	if j < 0 {
		return false
	}

	focus := rowFocus(s.shelves[i], j)
	s.selection = types.Selection{ShelfID: shelfID, RowID: rowID, Focus: &focus}

	return true
}

// refocus moves the focus target along with a selected shelf or row whose
// position changed after a sibling was removed.
func (s *Scene) refocus() {
	if s.selection.ShelfID == "" {
		return
	}

	if s.selection.RowID != "" {
		s.selectRow(s.selection.ShelfID, s.selection.RowID)
		return
	}

	s.selectShelf(s.selection.ShelfID)
}

func (s *Scene) indexOfShelf(id string) int {
	return slices.IndexFunc(s.shelves, func(sh types.Shelf) bool { return sh.ID == id })
}

func (s *Scene) row(shelfID, rowID string) *types.Row {
	i := s.indexOfShelf(shelfID)
	if i < 0 {
		return nil
	}

	for j := range s.shelves[i].Rows {
		if s.shelves[i].Rows[j].ID == rowID {
			return &s.shelves[i].Rows[j]
		}
	}

	return nil
}

func (s *Scene) snapshot() types.SceneState {
	state := types.SceneState{
		ModuleID:  s.moduleID,
		Mode:      s.mode,
		Shelves:   cloneShelves(s.shelves),
		Selection: s.selection,
	}

	if s.selection.Focus != nil {
		focus := *s.selection.Focus
		state.Selection.Focus = &focus
	}

	return state
}

func (s *Scene) restore(state types.SceneState) {
	s.mode = state.Mode
	s.shelves = cloneShelves(state.Shelves)
	s.selection = state.Selection

	if state.Selection.Focus != nil {
		focus := *state.Selection.Focus
		s.selection.Focus = &focus
	}
}

func summarize(shelves []types.Shelf, mode types.Mode) types.SceneSummary {
	return types.SceneSummary{
		Shelves:     len(shelves),
		Rows:        lo.SumBy(shelves, func(s types.Shelf) int { return len(s.Rows) }),
		Active:      lo.CountBy(shelves, func(s types.Shelf) bool { return s.Status == types.ShelfActive }),
		Maintenance: lo.CountBy(shelves, func(s types.Shelf) bool { return s.Status == types.ShelfMaintenance }),
		Mode:        mode,
	}
}

func cloneShelves(shelves []types.Shelf) []types.Shelf {
	return lo.Map(shelves, func(s types.Shelf, _ int) types.Shelf { return cloneShelf(s) })
}

func cloneShelf(s types.Shelf) types.Shelf {
	s.Rows = append([]types.Row{}, s.Rows...)
	return s
}
