package database

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate moq -rm -out layouts_mock.go . LayoutRepository

// LayoutRepository stores the shelves and rows that make up the scene of a module.
type LayoutRepository interface {
	LoadLayout(ctx context.Context, moduleID uint) ([]Shelf, error)
	SaveLayout(ctx context.Context, moduleID uint, shelves []Shelf) error
}

type layoutRepository struct {
	db *gorm.DB
}

func NewLayoutRepository(d *Database) LayoutRepository {
	return &layoutRepository{db: d.db}
}

func (r *layoutRepository) LoadLayout(ctx context.Context, moduleID uint) ([]Shelf, error) {
	if err := r.moduleExists(r.db.WithContext(ctx), moduleID); err != nil {
		return nil, err
	}

	var shelves []Shelf

	err := r.db.WithContext(ctx).
		Preload("Rows", func(db *gorm.DB) *gorm.DB {
			return db.Order(orderByAsc("NUMERO_FILA"))
		}).
		Where(&Shelf{ModuleID: moduleID}).
		Order(orderByAsc("ORDEN")).
		Find(&shelves).Error

	return shelves, err
}

// SaveLayout replaces every shelf and row of the module with the given layout.
func (r *layoutRepository) SaveLayout(ctx context.Context, moduleID uint, shelves []Shelf) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.moduleExists(tx, moduleID); err != nil {
			return err
		}

		var current []Shelf
		err := tx.Where(&Shelf{ModuleID: moduleID}).Find(&current).Error
		if err != nil {
			return err
		}

		if len(current) > 0 {
			ids := lo.ToAnySlice(lo.Map(current, func(s Shelf, _ int) string { return s.ID }))

			err = tx.Where(clause.IN{Column: clause.Column{Name: "FK_ID_ESTANTE"}, Values: ids}).Delete(&Row{}).Error
			if err != nil {
				return err
			}

			err = tx.Where(&Shelf{ModuleID: moduleID}).Delete(&Shelf{}).Error
			if err != nil {
				return err
			}
		}

		if len(shelves) == 0 {
			return nil
		}

		rows := []Row{}
		for i := range shelves {
			shelves[i].ModuleID = moduleID
			shelves[i].Order = i
			for _, row := range shelves[i].Rows {
				row.ShelfID = shelves[i].ID
				rows = append(rows, row)
			}
		}

		err = tx.Omit(clause.Associations).Create(&shelves).Error
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		return tx.Omit(clause.Associations).Create(&rows).Error
	})
}

func (r *layoutRepository) moduleExists(db *gorm.DB, moduleID uint) error {
	if moduleID == 0 {
		return ErrModuleNotFound
	}

	var module Module
	err := db.Where(&Module{ID: moduleID}).First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrModuleNotFound
		}
		return err
	}

	return nil
}
