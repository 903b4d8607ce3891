package database

import (
	"context"
	"errors"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate moq -rm -out modules_mock.go . ModuleRepository

type ModuleRepository interface {
	List(ctx context.Context) ([]ModuleWithUsers, error)
	GetByID(ctx context.Context, id uint) (ModuleWithUsers, error)
	Create(ctx context.Context, module Module, userIDs []uint) (Module, error)
	Update(ctx context.Context, module Module, userIDs *[]uint) error
	Delete(ctx context.Context, id uint) (string, error)
}

type ModuleWithUsers struct {
	Module
	Users []User
}

const ModuleDeletedMessage string = "module and its dependent records were deleted"

type moduleRepository struct {
	db *gorm.DB
}

func NewModuleRepository(d *Database) ModuleRepository {
	return &moduleRepository{db: d.db}
}

func (r *moduleRepository) List(ctx context.Context) ([]ModuleWithUsers, error) {
	var modules []Module

	err := r.db.WithContext(ctx).
		Order(orderByDesc("ID_MODULO_LABORATORIO")).
		Find(&modules).Error
	if err != nil {
		return nil, err
	}

	users, err := r.usersByModule(ctx, lo.Map(modules, func(m Module, _ int) uint { return m.ID })...)
	if err != nil {
		return nil, err
	}

	return lo.Map(modules, func(m Module, _ int) ModuleWithUsers {
		return ModuleWithUsers{Module: m, Users: users[m.ID]}
	}), nil
}

func (r *moduleRepository) usersByModule(ctx context.Context, moduleIDs ...uint) (map[uint][]User, error) {
	if len(moduleIDs) == 0 {
		return map[uint][]User{}, nil
	}

	var pairs []UserModule

	err := r.db.WithContext(ctx).
		Joins("User").
		Where(clause.IN{Column: clause.Column{Name: "FK_ID_MODULO_LABORATORIO"}, Values: lo.ToAnySlice(moduleIDs)}).
		Order(orderByAsc("FK_ID_USUARIO")).
		Find(&pairs).Error
	if err != nil {
		return nil, err
	}

	grouped := lo.GroupBy(pairs, func(p UserModule) uint { return p.ModuleID })

	return lo.MapValues(grouped, func(pp []UserModule, _ uint) []User {
		return lo.Map(pp, func(p UserModule, _ int) User { return p.User })
	}), nil
}

func (r *moduleRepository) GetByID(ctx context.Context, id uint) (ModuleWithUsers, error) {
	logger := logging.GetFromContext(ctx)

	if id == 0 {
		return ModuleWithUsers{}, ErrModuleNotFound
	}

	var module Module

	err := r.db.WithContext(ctx).Where(&Module{ID: id}).First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ModuleWithUsers{}, ErrModuleNotFound
		}

		logger.Error().Err(err).Msg("gorm error")

		return ModuleWithUsers{}, ErrRepositoryError
	}

	users, err := r.usersByModule(ctx, id)
	if err != nil {
		return ModuleWithUsers{}, err
	}

	return ModuleWithUsers{Module: module, Users: users[id]}, nil
}

// Create inserts the module and one association row per user id in a single transaction.
// Nothing is persisted if any of the inserts fail.
func (r *moduleRepository) Create(ctx context.Context, module Module, userIDs []uint) (Module, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Create(&module).Error
		if err != nil {
			return err
		}

		return insertAssociations(tx, module.ID, userIDs)
	})
	if err != nil {
		return Module{}, err
	}

	return module, nil
}

// Update writes the module columns and, when userIDs is not nil, replaces the
// full set of associations with the given ids. A nil userIDs leaves associations untouched.
func (r *moduleRepository) Update(ctx context.Context, module Module, userIDs *[]uint) error {
	if module.ID == 0 {
		return ErrModuleNotFound
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns := map[string]any{
			"NOMBRE_MODULO_LABORATORIO":       module.Name,
			"DESCRIPCION_MODULO_LABORATORIO":  module.Description,
			"FK_ID_ESTADO_MODULO_LABORATORIO": module.StatusID,
		}

		if module.LaboratoryID != nil {
			columns["FK_ID_LABORATORIO"] = *module.LaboratoryID
		}

		result := tx.Model(&Module{}).Where(&Module{ID: module.ID}).Updates(columns)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrModuleNotFound
		}

		if userIDs == nil {
			return nil
		}

		err := tx.Where(&UserModule{ModuleID: module.ID}).Delete(&UserModule{}).Error
		if err != nil {
			return err
		}

		return insertAssociations(tx, module.ID, *userIDs)
	})
}

func insertAssociations(tx *gorm.DB, moduleID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}

	pairs := lo.Map(userIDs, func(userID uint, _ int) UserModule {
		return UserModule{UserID: userID, ModuleID: moduleID}
	})

	return tx.Omit(clause.Associations).Create(&pairs).Error
}

// Delete removes the module together with its shelves, rows and user associations.
// On MySQL the cascade runs inside the eliminar_modulo_laboratorio_cadena procedure.
func (r *moduleRepository) Delete(ctx context.Context, id uint) (string, error) {
	if r.db.Dialector.Name() == "mysql" {
		return r.deleteWithProcedure(ctx, id)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return cascadeDeleteModule(tx, id)
	})
	if err != nil {
		return "", err
	}

	return ModuleDeletedMessage, nil
}

func (r *moduleRepository) deleteWithProcedure(ctx context.Context, id uint) (string, error) {
	var result struct {
		Message string `gorm:"column:mensaje"`
	}

	err := r.db.WithContext(ctx).Raw("CALL eliminar_modulo_laboratorio_cadena(?)", id).Scan(&result).Error
	if err != nil {
		return "", translateProcedureError(err)
	}

	if result.Message == "" {
		return ModuleDeletedMessage, nil
	}

	return result.Message, nil
}

func cascadeDeleteModule(tx *gorm.DB, id uint) error {
	if id == 0 {
		return &BusinessRuleError{Message: "the module does not exist"}
	}

	var count int64

	err := tx.Model(&Module{}).Where(&Module{ID: id}).Count(&count).Error
	if err != nil {
		return err
	}

	if count == 0 {
		return &BusinessRuleError{Message: "the module does not exist"}
	}

	var shelves []Shelf
	err = tx.Where(&Shelf{ModuleID: id}).Find(&shelves).Error
	if err != nil {
		return err
	}

	shelfIDs := lo.ToAnySlice(lo.Map(shelves, func(s Shelf, _ int) string { return s.ID }))
	inShelves := clause.IN{Column: clause.Column{Name: "FK_ID_ESTANTE"}, Values: shelfIDs}

	var irrigating int64
	err = tx.Model(&Row{}).Where(inShelves).Where(&Row{IrrigationActive: true}).Count(&irrigating).Error
	if err != nil {
		return err
	}

	if irrigating > 0 {
		return &BusinessRuleError{Message: "the module cannot be deleted while irrigation is active on one of its rows"}
	}

	if len(shelfIDs) > 0 {
		if err = tx.Where(inShelves).Delete(&Row{}).Error; err != nil {
			return err
		}
		if err = tx.Where(&Shelf{ModuleID: id}).Delete(&Shelf{}).Error; err != nil {
			return err
		}
	}

	if err = tx.Where(&UserModule{ModuleID: id}).Delete(&UserModule{}).Error; err != nil {
		return err
	}

	return tx.Where(&Module{ID: id}).Delete(&Module{}).Error
}
