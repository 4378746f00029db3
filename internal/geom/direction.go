// Package geom содержит направления сетки секций и отсечение по пирамиде видимости.
package geom

import "github.com/annel0/voxel-render/internal/vec"

// Direction одно из шести осевых направлений
type Direction uint8

const (
	Down  Direction = iota // -Y
	Up                     // +Y
	North                  // -Z
	South                  // +Z
	West                   // -X
	East                   // +X
)

// DirectionCount количество осевых направлений
const DirectionCount = 6

// NoDirection отмечает корень обхода (вход не из соседа)
const NoDirection Direction = 0xFF

// AllDirections все направления в порядке их индексов
var AllDirections = [DirectionCount]Direction{Down, Up, North, South, West, East}

var opposites = [DirectionCount]Direction{Up, Down, South, North, East, West}

var offsets = [DirectionCount]vec.Vec3{
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 0, Y: 0, Z: 1},
	{X: -1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: 0},
}

var names = [DirectionCount]string{"down", "up", "north", "south", "west", "east"}

// Opposite возвращает противоположное направление
func (d Direction) Opposite() Direction {
	return opposites[d]
}

// Offset возвращает единичное смещение направления
func (d Direction) Offset() vec.Vec3 {
	return offsets[d]
}

// Valid сообщает, является ли значение одним из шести направлений
func (d Direction) Valid() bool {
	return d < DirectionCount
}

// Bit возвращает битовую маску направления
func (d Direction) Bit() uint8 {
	return 1 << d
}

func (d Direction) String() string {
	if !d.Valid() {
		return "none"
	}
	return names[d]
}
