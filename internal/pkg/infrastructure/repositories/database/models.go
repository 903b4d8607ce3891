package database

import (
	"time"
)

const (
	RoleAdmin    uint = 1
	RoleOperator uint = 2
)

const (
	StatusActive      uint = 1
	StatusMaintenance uint = 2
	StatusInactive    uint = 3
)

type Role struct {
	ID   uint   `gorm:"column:ID_ROL;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:NOMBRE_ROL;size:50;not null"`
}

func (Role) TableName() string { return "ROL" }

type User struct {
	ID        uint      `gorm:"column:ID_USUARIO;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:NOMBRE;size:100"`
	Username  string    `gorm:"column:USERNAME;size:50;not null;uniqueIndex:UQ_USUARIO_USERNAME"`
	Password  string    `gorm:"column:PASSWORD;size:255;not null"`
	Email     string    `gorm:"column:EMAIL;size:100;not null;uniqueIndex:UQ_USUARIO_EMAIL"`
	RoleID    uint      `gorm:"column:FK_ID_ROL;not null"`
	Role      Role      `gorm:"foreignKey:RoleID"`
	Status    int       `gorm:"column:ESTADO;not null"`
	CreatedAt time.Time `gorm:"column:CREADO_EN"`
}

func (User) TableName() string { return "USUARIO" }

type LaboratoryStatus struct {
	ID   uint   `gorm:"column:ID_ESTADO_LABORATORIO;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:NOMBRE_ESTADO_LABORATORIO;size:50;not null"`
}

func (LaboratoryStatus) TableName() string { return "ESTADO_LABORATORIO" }

type Laboratory struct {
	ID            uint             `gorm:"column:ID_LABORATORIO;primaryKey;autoIncrement"`
	Code          string           `gorm:"column:CODIGO;size:20;not null;uniqueIndex:UQ_LABORATORIO_CODIGO"`
	Name          string           `gorm:"column:NOMBRE_LABORATORIO;size:100;not null"`
	Description   string           `gorm:"column:DESCRIPCION_LABORATORIO;size:255"`
	StatusID      uint             `gorm:"column:FK_ID_ESTADO_LABORATORIO;not null"`
	Status        LaboratoryStatus `gorm:"foreignKey:StatusID"`
	Temperature   float64          `gorm:"column:TEMPERATURA"`
	Humidity      float64          `gorm:"column:HUMEDAD"`
	Automation    string           `gorm:"column:AUTOMATIZACION;size:3;not null;default:off"`
	ZoneDisabled  bool             `gorm:"column:ZONA_DESHABILITADA;not null;default:false"`
	ActiveSensors int              `gorm:"column:SENSORES_ACTIVOS;not null;default:0"`
	Devices       int              `gorm:"column:DISPOSITIVOS;not null;default:0"`
	CreatedAt     time.Time        `gorm:"column:CREADO_EN"`
}

func (Laboratory) TableName() string { return "LABORATORIO" }

type ModuleStatus struct {
	ID   uint   `gorm:"column:ID_ESTADO_MODULO_LABORATORIO;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:NOMBRE_ESTADO_MODULO_LABORATORIO;size:50;not null"`
}

func (ModuleStatus) TableName() string { return "ESTADO_MODULO_LABORATORIO" }

type Module struct {
	ID           uint         `gorm:"column:ID_MODULO_LABORATORIO;primaryKey;autoIncrement"`
	Name         string       `gorm:"column:NOMBRE_MODULO_LABORATORIO;size:100;not null"`
	Description  string       `gorm:"column:DESCRIPCION_MODULO_LABORATORIO;size:255;not null"`
	StatusID     uint         `gorm:"column:FK_ID_ESTADO_MODULO_LABORATORIO;not null"`
	Status       ModuleStatus `gorm:"foreignKey:StatusID"`
	LaboratoryID *uint        `gorm:"column:FK_ID_LABORATORIO"`
	Laboratory   *Laboratory  `gorm:"foreignKey:LaboratoryID"`
}

func (Module) TableName() string { return "MODULO_LABORATORIO" }

// UserModule is the junction row between USUARIO and MODULO_LABORATORIO.
type UserModule struct {
	UserID   uint   `gorm:"column:FK_ID_USUARIO;primaryKey;autoIncrement:false"`
	User     User   `gorm:"foreignKey:UserID"`
	ModuleID uint   `gorm:"column:FK_ID_MODULO_LABORATORIO;primaryKey;autoIncrement:false"`
	Module   Module `gorm:"foreignKey:ModuleID"`
}

func (UserModule) TableName() string { return "USUARIO_MODULO_LABORATORIO" }

type Shelf struct {
	ID       string `gorm:"column:ID_ESTANTE;primaryKey;size:36"`
	ModuleID uint   `gorm:"column:FK_ID_MODULO_LABORATORIO;not null;index"`
	Module   Module `gorm:"foreignKey:ModuleID"`
	Order    int    `gorm:"column:ORDEN;not null"`
	Name     string `gorm:"column:NOMBRE_ESTANTE;size:100;not null"`
	Code     string `gorm:"column:NUMERO_ESTANTE;size:20;not null"`
	Status   string `gorm:"column:ESTADO_ESTANTE;size:20;not null"`

	PositionX float64 `gorm:"column:POSICION_X"`
	PositionY float64 `gorm:"column:POSICION_Y"`
	PositionZ float64 `gorm:"column:POSICION_Z"`
	RotationX float64 `gorm:"column:ROTACION_X"`
	RotationY float64 `gorm:"column:ROTACION_Y"`
	RotationZ float64 `gorm:"column:ROTACION_Z"`
	Width     float64 `gorm:"column:ANCHO"`
	Height    float64 `gorm:"column:ALTO"`
	Depth     float64 `gorm:"column:PROFUNDIDAD"`

	Rows []Row `gorm:"foreignKey:ShelfID"`
}

func (Shelf) TableName() string { return "ESTANTE" }

type Row struct {
	ID               string `gorm:"column:ID_FILA;primaryKey;size:36"`
	ShelfID          string `gorm:"column:FK_ID_ESTANTE;not null;index;size:36"`
	Number           int    `gorm:"column:NUMERO_FILA;not null"`
	Crop             string `gorm:"column:TIPO_CULTIVO;size:100"`
	LightOn          bool   `gorm:"column:LUZ_ENCENDIDA;not null;default:false"`
	IrrigationActive bool   `gorm:"column:RIEGO_ACTIVO;not null;default:false"`
}

func (Row) TableName() string { return "FILA" }
