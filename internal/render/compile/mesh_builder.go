package compile

import (
	"encoding/binary"

	"github.com/chewxy/math32"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/state"
)

// faceForDirection грань модели для направления нормали
var faceForDirection = [geom.DirectionCount]state.ModelFace{
	geom.Down:  state.FaceDown,
	geom.Up:    state.FaceUp,
	geom.North: state.FaceNorth,
	geom.South: state.FaceSouth,
	geom.West:  state.FaceWest,
	geom.East:  state.FaceEast,
}

// quadCorners углы квада грани в локальных координатах блока
var quadCorners = [geom.DirectionCount][4][3]float32{
	geom.Down:  {{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	geom.Up:    {{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
	geom.North: {{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
	geom.South: {{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
	geom.West:  {{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}},
	geom.East:  {{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
}

// meshBuilder накапливает вершины одного прохода по граням
type meshBuilder struct {
	faces [state.FaceCount][]byte
}

// addQuad добавляет квад грани блока
func (b *meshBuilder) addQuad(x, y, z int, dir geom.Direction, color uint32) {
	face := faceForDirection[dir]
	buf := b.faces[face]

	var vertex [state.VertexSize]byte
	for _, c := range quadCorners[dir] {
		binary.LittleEndian.PutUint32(vertex[0:], math32.Float32bits(float32(x)+c[0]))
		binary.LittleEndian.PutUint32(vertex[4:], math32.Float32bits(float32(y)+c[1]))
		binary.LittleEndian.PutUint32(vertex[8:], math32.Float32bits(float32(z)+c[2]))
		binary.LittleEndian.PutUint32(vertex[12:], color)
		buf = append(buf, vertex[:]...)
	}
	b.faces[face] = buf
}

// empty true если вершин нет
func (b *meshBuilder) empty() bool {
	for _, f := range b.faces {
		if len(f) > 0 {
			return false
		}
	}
	return true
}

// build склеивает грани в один буфер
func (b *meshBuilder) build() *state.MeshData {
	if b.empty() {
		return nil
	}

	mesh := &state.MeshData{}
	for face, data := range b.faces {
		mesh.Parts[face] = state.VertexRange{
			Start: len(mesh.Vertices) / state.VertexSize,
			Count: len(data) / state.VertexSize,
		}
		mesh.Vertices = append(mesh.Vertices, data...)
	}
	return mesh
}
