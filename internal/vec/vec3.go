package vec

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Для секций мира это координаты секции (блок >> 4), а не блока.
type Vec3 struct {
	X int
	Y int
	Z int
}

// Column возвращает координаты колонки (X, Z), которой принадлежит секция
func (v Vec3) Column() Vec2 {
	return Vec2{
		X: v.X,
		Y: v.Z,
	}
}

// DistanceTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return float64(dx*dx + dy*dy + dz*dz)
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// ToSectionCoords преобразует координаты блока в координаты секции
func (v Vec3) ToSectionCoords() Vec3 {
	return Vec3{X: v.X >> 4, Y: v.Y >> 4, Z: v.Z >> 4} // Деление на 16
}

// LocalInSection возвращает локальные координаты блока внутри секции
func (v Vec3) LocalInSection() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y & 0xF, Z: v.Z & 0xF} // Модуль 16
}

// Origin возвращает координаты первого блока секции
func (v Vec3) Origin() Vec3 {
	return Vec3{X: v.X << 4, Y: v.Y << 4, Z: v.Z << 4}
}

// Упаковка секции в int64: 22 бита X, 20 бит Y, 22 бита Z.
const (
	packedXZBits = 22
	packedYBits  = 20
	packedXZMask = 1<<packedXZBits - 1
	packedYMask  = 1<<packedYBits - 1
	packedZShift = packedYBits
	packedXShift = packedYBits + packedXZBits
)

// Pack упаковывает координаты секции в один ключ
func (v Vec3) Pack() int64 {
	return int64(v.X&packedXZMask)<<packedXShift |
		int64(v.Z&packedXZMask)<<packedZShift |
		int64(v.Y&packedYMask)
}

// Unpack восстанавливает координаты секции из ключа, созданного Pack
func Unpack(key int64) Vec3 {
	return Vec3{
		X: int(key >> packedXShift),
		Y: int(key << (64 - packedYBits) >> (64 - packedYBits)),
		Z: int(key << (64 - packedXShift) >> (64 - packedXZBits)),
	}
}
