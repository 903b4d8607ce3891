package types

import (
	"encoding/json"
	"time"
)

type UserRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type Module struct {
	ID           uint      `json:"id"`
	Name         string    `json:"nombre"`
	Description  string    `json:"descripcion"`
	StatusID     uint      `json:"estadoId"`
	LaboratoryID *uint     `json:"laboratorioId,omitempty"`
	TotalUsers   int       `json:"totalUsuarios"`
	Users        []UserRef `json:"usuarios"`
}

type CreateModuleRequest struct {
	Name         string `json:"nombre" validate:"required,max=100"`
	Description  string `json:"descripcion" validate:"required,max=255"`
	StatusID     uint   `json:"estadoId" validate:"required,oneof=1 2 3"`
	LaboratoryID *uint  `json:"laboratorioId,omitempty" validate:"omitempty,gt=0"`
	Users        []uint `json:"usuarios" validate:"omitempty,unique,dive,gt=0"`
}

type UpdateModuleRequest struct {
	Name         string   `json:"nombre" validate:"required,max=100"`
	Description  string   `json:"descripcion" validate:"required,max=255"`
	StatusID     uint     `json:"estadoId" validate:"required,oneof=1 2 3"`
	LaboratoryID *uint    `json:"laboratorioId,omitempty" validate:"omitempty,gt=0"`
	Users        UserList `json:"usuarios"`
}

// UserList is the user list of an update. Present is set as soon as the field
// appears in the request body, null included, so that only an omitted field
// leaves the associations alone.
type UserList struct {
	Present bool   `json:"-"`
	IDs     []uint `json:"usuarios" validate:"omitempty,unique,dive,gt=0"`
}

func NewUserList(ids ...uint) UserList {
	if ids == nil {
		ids = []uint{}
	}
	return UserList{Present: true, IDs: ids}
}

func (l *UserList) UnmarshalJSON(b []byte) error {
	l.Present = true
	l.IDs = []uint{}

	if string(b) == "null" {
		return nil
	}

	return json.Unmarshal(b, &l.IDs)
}

// Replacement returns the list that replaces the current associations, or nil
// when they should be kept.
func (l UserList) Replacement() *[]uint {
	if !l.Present {
		return nil
	}

	ids := l.IDs
	if ids == nil {
		ids = []uint{}
	}

	return &ids
}

const UsersUnchanged string = "unchanged"

// ModuleResult echoes a created or updated module. Users holds either the
// list of user ids that was written or UsersUnchanged.
type ModuleResult struct {
	ID           uint   `json:"id"`
	Name         string `json:"nombre"`
	Description  string `json:"descripcion"`
	StatusID     uint   `json:"estadoId"`
	LaboratoryID *uint  `json:"laboratorioId,omitempty"`
	Users        any    `json:"usuarios"`
}

type ModuleResponse struct {
	Message string       `json:"message"`
	Module  ModuleResult `json:"modulo"`
}

type ModuleList struct {
	Message string   `json:"message"`
	Data    []Module `json:"data"`
}

type DeleteRequest struct {
	ConfirmDelete bool   `json:"confirmDelete"`
	AdminID       uint   `json:"adminId"`
	AdminPassword string `json:"adminPassword"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	RoleID   uint   `json:"rolId"`
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"required,email,max=100"`
	RoleID   uint   `json:"fk_id_rol" validate:"required,oneof=1 2"`
	Status   *int   `json:"status,omitempty" validate:"omitempty,oneof=0 1"`
}

type User struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RoleID    uint      `json:"rolId"`
	Role      string    `json:"role"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

type Laboratory struct {
	ID               uint      `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	StatusID         uint      `json:"estadoId"`
	Status           string    `json:"status"`
	Temperature      float64   `json:"temperature"`
	Humidity         float64   `json:"humidity"`
	AutomationStatus string    `json:"automationStatus"`
	IsZoneDisabled   bool      `json:"isZoneDisabled"`
	ActiveSensors    int       `json:"activeSensors"`
	Devices          int       `json:"devices"`
	AssociatedUsers  int       `json:"associatedUsers"`
	CreatedAt        time.Time `json:"createdAt"`
}

type LaboratoryRequest struct {
	Code             string  `json:"code" validate:"required,max=20"`
	Name             string  `json:"name" validate:"required,max=100"`
	Description      string  `json:"description" validate:"max=255"`
	StatusID         uint    `json:"estadoId" validate:"required,oneof=1 2 3"`
	Temperature      float64 `json:"temperature" validate:"gte=-50,lte=100"`
	Humidity         float64 `json:"humidity" validate:"gte=0,lte=100"`
	AutomationStatus string  `json:"automationStatus" validate:"omitempty,oneof=on off"`
	IsZoneDisabled   bool    `json:"isZoneDisabled"`
	ActiveSensors    int     `json:"activeSensors" validate:"gte=0"`
	Devices          int     `json:"devices" validate:"gte=0"`
}

type LaboratoryResponse struct {
	Message    string     `json:"message"`
	Laboratory Laboratory `json:"laboratorio"`
}

type LaboratorySummary struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Automated     int `json:"automated"`
	ActiveSensors int `json:"activeSensors"`
	TotalUsers    int `json:"totalUsers"`
}
