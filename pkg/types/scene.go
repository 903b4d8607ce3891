package types

type Mode string

const (
	ModeMonitoring    Mode = "monitoring"
	ModeEditing       Mode = "editing"
	ModeConfiguration Mode = "configuration"
)

const (
	ShelfActive      string = "active"
	ShelfMaintenance string = "maintenance"
)

type Vector3 [3]float64

type Dimensions struct {
	Width  float64 `json:"ancho"`
	Height float64 `json:"alto"`
	Depth  float64 `json:"profundidad"`
}

type Row struct {
	ID               string `json:"id"`
	Number           int    `json:"numero"`
	Crop             string `json:"tipoCultivo"`
	LightOn          bool   `json:"luzEncendida"`
	IrrigationActive bool   `json:"riegoActivo"`
}

type Shelf struct {
	ID         string     `json:"id"`
	Name       string     `json:"nombre"`
	Code       string     `json:"numero"`
	Status     string     `json:"estado"`
	Position   Vector3    `json:"posicion"`
	Rotation   Vector3    `json:"rotacion"`
	Dimensions Dimensions `json:"dimensiones"`
	Rows       []Row      `json:"filas"`
}

type Selection struct {
	ShelfID string   `json:"estanteId,omitempty"`
	RowID   string   `json:"filaId,omitempty"`
	Focus   *Vector3 `json:"foco,omitempty"`
}

type SceneState struct {
	ModuleID  uint      `json:"moduloId"`
	Mode      Mode      `json:"modo"`
	Shelves   []Shelf   `json:"estantes"`
	Selection Selection `json:"seleccion"`
}

type SceneSummary struct {
	Shelves     int  `json:"estantes"`
	Rows        int  `json:"filas"`
	Active      int  `json:"activos"`
	Maintenance int  `json:"mantenimiento"`
	Mode        Mode `json:"modo"`
}

type SceneResponse struct {
	Scene   SceneState   `json:"escena"`
	Summary SceneSummary `json:"resumen"`
}

// MutationResult reports whether a scene operation changed anything.
type MutationResult struct {
	Applied bool       `json:"applied"`
	Shelf   *Shelf     `json:"estante,omitempty"`
	Row     *Row       `json:"fila,omitempty"`
	Scene   SceneState `json:"escena"`
}

type ModeRequest struct {
	Mode Mode `json:"modo" validate:"required"`
}
