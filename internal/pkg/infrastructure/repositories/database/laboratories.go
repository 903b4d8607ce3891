package database

import (
	"context"
	"errors"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate moq -rm -out laboratories_mock.go . LaboratoryRepository

type LaboratoryRepository interface {
	List(ctx context.Context, filter LaboratoryFilter) ([]LaboratoryWithUsers, error)
	Get(ctx context.Context, id uint) (LaboratoryWithUsers, error)
	Create(ctx context.Context, lab Laboratory) (Laboratory, error)
	Update(ctx context.Context, lab Laboratory) (Laboratory, error)
	Delete(ctx context.Context, id uint) error
	Statistics(ctx context.Context) (LaboratoryStatistics, error)
}

type LaboratoryFilter struct {
	StatusID   uint
	Automation string
	Query      string
}

type LaboratoryWithUsers struct {
	Laboratory
	TotalUsers int
}

type LaboratoryStatistics struct {
	Total         int
	Active        int
	Automated     int
	ActiveSensors int
	TotalUsers    int
}

type laboratoryRepository struct {
	db *gorm.DB
}

func NewLaboratoryRepository(d *Database) LaboratoryRepository {
	return &laboratoryRepository{db: d.db}
}

func (r *laboratoryRepository) List(ctx context.Context, filter LaboratoryFilter) ([]LaboratoryWithUsers, error) {
	var labs []Laboratory

	query := r.db.WithContext(ctx).Preload("Status")

	if filter.StatusID != 0 {
		query = query.Where(&Laboratory{StatusID: filter.StatusID})
	}

	if filter.Automation != "" {
		query = query.Where(&Laboratory{Automation: filter.Automation})
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		query = query.Where(clause.Or(
			clause.Like{Column: clause.Column{Name: "CODIGO"}, Value: pattern},
			clause.Like{Column: clause.Column{Name: "NOMBRE_LABORATORIO"}, Value: pattern},
			clause.Like{Column: clause.Column{Name: "DESCRIPCION_LABORATORIO"}, Value: pattern},
		))
	}

	err := query.Order(orderByDesc("ID_LABORATORIO")).Find(&labs).Error
	if err != nil {
		return nil, err
	}

	usersPerLab, err := r.usersPerLaboratory(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Map(labs, func(l Laboratory, _ int) LaboratoryWithUsers {
		return LaboratoryWithUsers{Laboratory: l, TotalUsers: len(usersPerLab[l.ID])}
	}), nil
}

// usersPerLaboratory returns the distinct user ids associated with the modules of each laboratory.
func (r *laboratoryRepository) usersPerLaboratory(ctx context.Context) (map[uint][]uint, error) {
	var modules []Module
	err := r.db.WithContext(ctx).
		Where(clause.Neq{Column: clause.Column{Name: "FK_ID_LABORATORIO"}, Value: nil}).
		Find(&modules).Error
	if err != nil {
		return nil, err
	}

	labOfModule := lo.Associate(modules, func(m Module) (uint, uint) {
		return m.ID, *m.LaboratoryID
	})

	var pairs []UserModule
	err = r.db.WithContext(ctx).
		Where(clause.IN{Column: clause.Column{Name: "FK_ID_MODULO_LABORATORIO"}, Values: lo.ToAnySlice(lo.Keys(labOfModule))}).
		Find(&pairs).Error
	if err != nil {
		return nil, err
	}

	result := map[uint][]uint{}
	for _, p := range pairs {
		labID := labOfModule[p.ModuleID]
		if !lo.Contains(result[labID], p.UserID) {
			result[labID] = append(result[labID], p.UserID)
		}
	}

	return result, nil
}

func (r *laboratoryRepository) Get(ctx context.Context, id uint) (LaboratoryWithUsers, error) {
	logger := logging.GetFromContext(ctx)

	if id == 0 {
		return LaboratoryWithUsers{}, ErrLaboratoryNotFound
	}

	var lab Laboratory
	err := r.db.WithContext(ctx).Preload("Status").Where(&Laboratory{ID: id}).First(&lab).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LaboratoryWithUsers{}, ErrLaboratoryNotFound
		}

		logger.Error().Err(err).Msg("gorm error")

		return LaboratoryWithUsers{}, ErrRepositoryError
	}

	usersPerLab, err := r.usersPerLaboratory(ctx)
	if err != nil {
		return LaboratoryWithUsers{}, err
	}

	return LaboratoryWithUsers{Laboratory: lab, TotalUsers: len(usersPerLab[lab.ID])}, nil
}

func (r *laboratoryRepository) Create(ctx context.Context, lab Laboratory) (Laboratory, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Laboratory{}).Where(&Laboratory{Code: lab.Code}).Count(&count).Error
	if err != nil {
		return Laboratory{}, err
	}

	if count > 0 {
		return Laboratory{}, ErrLaboratoryAlreadyExists
	}

	err = r.db.WithContext(ctx).Omit(clause.Associations).Create(&lab).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Laboratory{}, ErrLaboratoryAlreadyExists
		}
		return Laboratory{}, err
	}

	return lab, nil
}

func (r *laboratoryRepository) Update(ctx context.Context, lab Laboratory) (Laboratory, error) {
	if lab.ID == 0 {
		return Laboratory{}, ErrLaboratoryNotFound
	}

	var current Laboratory
	err := r.db.WithContext(ctx).Where(&Laboratory{ID: lab.ID}).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Laboratory{}, ErrLaboratoryNotFound
		}
		return Laboratory{}, err
	}

	if lab.Code != current.Code {
		var count int64
		err = r.db.WithContext(ctx).Model(&Laboratory{}).Where(&Laboratory{Code: lab.Code}).Count(&count).Error
		if err != nil {
			return Laboratory{}, err
		}
		if count > 0 {
			return Laboratory{}, ErrLaboratoryAlreadyExists
		}
	}

	lab.CreatedAt = current.CreatedAt

	// Select("*") writes zero values too, so flags can be switched off
	err = r.db.WithContext(ctx).Model(&current).Select("*").Omit(clause.Associations, "ID_LABORATORIO", "CREADO_EN").Updates(&lab).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Laboratory{}, ErrLaboratoryAlreadyExists
		}
		return Laboratory{}, err
	}

	return lab, nil
}

func (r *laboratoryRepository) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrLaboratoryNotFound
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lab Laboratory
		err := tx.Where(&Laboratory{ID: id}).First(&lab).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLaboratoryNotFound
			}
			return err
		}

		var modules int64
		err = tx.Model(&Module{}).Where(&Module{LaboratoryID: &id}).Count(&modules).Error
		if err != nil {
			return err
		}

		if modules > 0 {
			return &BusinessRuleError{Message: "the laboratory still has modules assigned"}
		}

		return tx.Delete(&lab).Error
	})
}

func (r *laboratoryRepository) Statistics(ctx context.Context) (LaboratoryStatistics, error) {
	labs, err := r.List(ctx, LaboratoryFilter{})
	if err != nil {
		return LaboratoryStatistics{}, err
	}

	var pairs []UserModule
	err = r.db.WithContext(ctx).
		Joins("Module").
		Where(clause.Neq{Column: clause.Column{Table: "Module", Name: "FK_ID_LABORATORIO"}, Value: nil}).
		Find(&pairs).Error
	if err != nil {
		return LaboratoryStatistics{}, err
	}

	return LaboratoryStatistics{
		Total:         len(labs),
		Active:        lo.CountBy(labs, func(l LaboratoryWithUsers) bool { return l.StatusID == StatusActive }),
		Automated:     lo.CountBy(labs, func(l LaboratoryWithUsers) bool { return l.Automation == "on" }),
		ActiveSensors: lo.SumBy(labs, func(l LaboratoryWithUsers) int { return l.ActiveSensors }),
		TotalUsers:    len(lo.Uniq(lo.Map(pairs, func(p UserModule, _ int) uint { return p.UserID }))),
	}, nil
}
