package shelving

import (
	"math"

	"github.com/labcontrol/labcontrol-api/pkg/types"
)

const (
	ShelfSpacing   float64 = 3.5
	ShelfElevation float64 = 0.75
	RowSpacing     float64 = 0.5
	rowTopMargin   float64 = 0.1
)

var defaultDimensions = types.Dimensions{Width: 2, Height: 1.5, Depth: 0.8}

func shelfPosition(index int) types.Vector3 {
	return types.Vector3{float64(index) * ShelfSpacing, ShelfElevation, 0}
}

// rowFocus is the global coordinate of the row at index i, i.e. its local offset
// inside the shelf rotated by the shelf rotation and moved to the shelf position.
func rowFocus(shelf types.Shelf, i int) types.Vector3 {
	offset := types.Vector3{0, shelf.Dimensions.Height/2 - rowTopMargin - float64(i)*RowSpacing, 0}
	r := rotateXYZ(offset, shelf.Rotation)

	return types.Vector3{
		r[0] + shelf.Position[0],
		r[1] + shelf.Position[1],
		r[2] + shelf.Position[2],
	}
}

// rotateXYZ applies an intrinsic X-Y-Z Euler rotation, which is the same as
// rotating the vector about Z, then Y, then X.
func rotateXYZ(v, euler types.Vector3) types.Vector3 {
	sx, cx := math.Sincos(euler[0])
	sy, cy := math.Sincos(euler[1])
	sz, cz := math.Sincos(euler[2])

	x, y, z := v[0], v[1], v[2]

	x, y = x*cz-y*sz, x*sz+y*cz
	x, z = x*cy+z*sy, -x*sy+z*cy
	y, z = y*cx-z*sx, y*sx+z*cx

	return types.Vector3{x, y, z}
}
