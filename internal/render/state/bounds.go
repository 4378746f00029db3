package state

import "github.com/annel0/voxel-render/internal/vec"

// Bounds ограничивающий параллелепипед геометрии секции в мировых координатах
type Bounds struct {
	MinX, MinY, MinZ float32
	MaxX, MaxY, MaxZ float32
}

// SectionBounds возвращает границы всей секции
func SectionBounds(pos vec.Vec3) Bounds {
	o := pos.Origin()
	return Bounds{
		MinX: float32(o.X), MinY: float32(o.Y), MinZ: float32(o.Z),
		MaxX: float32(o.X + 16), MaxY: float32(o.Y + 16), MaxZ: float32(o.Z + 16),
	}
}

// BoundsBuilder накапливает занятые блоки секции
type BoundsBuilder struct {
	// Битовые маски занятых координат по осям
	x, y, z uint16
}

// AddBlock отмечает блок с локальными координатами
func (b *BoundsBuilder) AddBlock(x, y, z int) {
	b.x |= 1 << x
	b.y |= 1 << y
	b.z |= 1 << z
}

// Build возвращает границы. Без блоков возвращаются границы всей секции.
func (b *BoundsBuilder) Build(pos vec.Vec3) Bounds {
	if b.x|b.y|b.z == 0 {
		return SectionBounds(pos)
	}

	o := pos.Origin()
	x1, x2 := maskRange(b.x)
	y1, y2 := maskRange(b.y)
	z1, z2 := maskRange(b.z)

	return Bounds{
		MinX: float32(o.X + x1), MinY: float32(o.Y + y1), MinZ: float32(o.Z + z1),
		MaxX: float32(o.X + x2), MaxY: float32(o.Y + y2), MaxZ: float32(o.Z + z2),
	}
}

// maskRange возвращает [min, max+1) по маске
func maskRange(mask uint16) (int, int) {
	lo, hi := 0, 16
	for lo < 16 && mask&(1<<lo) == 0 {
		lo++
	}
	for hi > 0 && mask&(1<<(hi-1)) == 0 {
		hi--
	}
	return lo, hi
}
