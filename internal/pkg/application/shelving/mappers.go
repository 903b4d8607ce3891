package shelving

import (
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/samber/lo"
)

func MapToShelves(shelves []database.Shelf) []types.Shelf {
	return lo.Map(shelves, func(s database.Shelf, _ int) types.Shelf {
		return types.Shelf{
			ID:       s.ID,
			Name:     s.Name,
			Code:     s.Code,
			Status:   s.Status,
			Position: types.Vector3{s.PositionX, s.PositionY, s.PositionZ},
			Rotation: types.Vector3{s.RotationX, s.RotationY, s.RotationZ},
			Dimensions: types.Dimensions{
				Width:  s.Width,
				Height: s.Height,
				Depth:  s.Depth,
			},
			Rows: lo.Map(s.Rows, func(r database.Row, _ int) types.Row {
				return types.Row{
					ID:               r.ID,
					Number:           r.Number,
					Crop:             r.Crop,
					LightOn:          r.LightOn,
					IrrigationActive: r.IrrigationActive,
				}
			}),
		}
	})
}

func MapFromShelves(moduleID uint, shelves []types.Shelf) []database.Shelf {
	return lo.Map(shelves, func(s types.Shelf, i int) database.Shelf {
		return database.Shelf{
			ID:        s.ID,
			ModuleID:  moduleID,
			Order:     i,
			Name:      s.Name,
			Code:      s.Code,
			Status:    s.Status,
			PositionX: s.Position[0],
			PositionY: s.Position[1],
			PositionZ: s.Position[2],
			RotationX: s.Rotation[0],
			RotationY: s.Rotation[1],
			RotationZ: s.Rotation[2],
			Width:     s.Dimensions.Width,
			Height:    s.Dimensions.Height,
			Depth:     s.Dimensions.Depth,
			Rows: lo.Map(s.Rows, func(r types.Row, _ int) database.Row {
				return database.Row{
					ID:               r.ID,
					ShelfID:          s.ID,
					Number:           r.Number,
					Crop:             r.Crop,
					LightOn:          r.LightOn,
					IrrigationActive: r.IrrigationActive,
				}
			}),
		}
	})
}
