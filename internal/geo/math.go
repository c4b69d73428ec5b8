package geo

import "math"

// MaxLat is the latitude limit of the Web Mercator projection.
const MaxLat = 85.05112878

// TileCoordinate represents a specific slippy map tile.
type TileCoordinate struct {
	Z, X, Y int
}

// LonLatToTile returns the tile containing the given WGS84 position at zoom z
// using the Web Mercator projection.
func LonLatToTile(lon, lat float64, z int) TileCoordinate {
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	n := float64(int(1) << z)
	latRad := lat * math.Pi / 180.0

	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	return TileCoordinate{Z: z, X: clampTile(x, z), Y: clampTile(y, z)}
}

// TilesAround lists tiles within radius of the tile containing (lat, lon)
// at zoom z. Columns wrap around the antimeridian, rows are clipped.
func TilesAround(lat, lon float64, z, radius int) []TileCoordinate {
	center := LonLatToTile(lon, lat, z)
	size := 1 << z

	seen := make(map[TileCoordinate]bool)
	tiles := make([]TileCoordinate, 0, (2*radius+1)*(2*radius+1))

	for dy := -radius; dy <= radius; dy++ {
		y := center.Y + dy
		if y < 0 || y >= size {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := ((center.X+dx)%size + size) % size
			t := TileCoordinate{Z: z, X: x, Y: y}
			if seen[t] {
				continue
			}
			seen[t] = true
			tiles = append(tiles, t)
		}
	}

	return tiles
}

// ValidTile reports whether the coordinate exists in the tile pyramid.
func ValidTile(t TileCoordinate) bool {
	if t.Z < 0 || t.Z > 30 {
		return false
	}
	size := 1 << t.Z
	return t.X >= 0 && t.X < size && t.Y >= 0 && t.Y < size
}

func clampTile(v, z int) int {
	maxCoord := (1 << z) - 1
	if v < 0 {
		return 0
	}
	if v > maxCoord {
		return maxCoord
	}
	return v
}
