package state

// ModelFace грань модели для раздельной отрисовки граней
type ModelFace uint8

const (
	FaceUp ModelFace = iota
	FaceDown
	FaceEast
	FaceWest
	FaceSouth
	FaceNorth
	FaceUnassigned
)

// FaceCount количество групп граней
const FaceCount = 7

// Маски видимых граней
const (
	FaceUpBits         = 1 << FaceUp
	FaceDownBits       = 1 << FaceDown
	FaceEastBits       = 1 << FaceEast
	FaceWestBits       = 1 << FaceWest
	FaceSouthBits      = 1 << FaceSouth
	FaceNorthBits      = 1 << FaceNorth
	FaceUnassignedBits = 1 << FaceUnassigned

	FaceAllBits = 1<<FaceCount - 1
)

// VertexSize размер вершины в байтах: позиция 3xfloat32 и упакованный цвет
const VertexSize = 16

// VertexRange диапазон вершин одной грани в буфере
type VertexRange struct {
	Start int
	Count int
}

// MeshData вершины одного прохода, сгруппированные по граням
type MeshData struct {
	Vertices []byte
	Parts    [FaceCount]VertexRange
}

// VertexCount общее количество вершин
func (m *MeshData) VertexCount() int {
	return len(m.Vertices) / VertexSize
}

// Size размер буфера в байтах
func (m *MeshData) Size() int {
	return len(m.Vertices)
}
