package types

import "time"

type DeviceFlag string

const (
	FlagLight      DeviceFlag = "luz"
	FlagIrrigation DeviceFlag = "riego"
)

// RowDeviceCommand asks the field controller of a row to switch light or irrigation.
type RowDeviceCommand struct {
	ModuleID  uint       `json:"moduloId"`
	ShelfID   string     `json:"estanteId"`
	RowID     string     `json:"filaId"`
	Flag      DeviceFlag `json:"flag"`
	On        bool       `json:"on"`
	Timestamp time.Time  `json:"timestamp"`
}

func (c *RowDeviceCommand) ContentType() string {
	return "application/json"
}

func (c *RowDeviceCommand) TopicName() string {
	return "labcontrol.row.devicecommand"
}

// RowDeviceState is reported by a field controller after the devices of a row changed.
type RowDeviceState struct {
	ModuleID         uint      `json:"moduloId"`
	ShelfID          string    `json:"estanteId"`
	RowID            string    `json:"filaId"`
	LightOn          *bool     `json:"luzEncendida,omitempty"`
	IrrigationActive *bool     `json:"riegoActivo,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func (s *RowDeviceState) ContentType() string {
	return "application/json"
}

func (s *RowDeviceState) TopicName() string {
	return "labcontrol.row.devicestate"
}

type ModuleCreated struct {
	ModuleID  uint      `json:"moduloId"`
	Name      string    `json:"nombre"`
	Users     []uint    `json:"usuarios"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *ModuleCreated) EventType() string {
	return "labcontrol.module.created"
}

type ModuleUpdated struct {
	ModuleID  uint      `json:"moduloId"`
	Name      string    `json:"nombre"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *ModuleUpdated) EventType() string {
	return "labcontrol.module.updated"
}

type ModuleDeleted struct {
	ModuleID  uint      `json:"moduloId"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *ModuleDeleted) EventType() string {
	return "labcontrol.module.deleted"
}
