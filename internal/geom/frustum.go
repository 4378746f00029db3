package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Visibility результат проверки объёма относительно пирамиды видимости
type Visibility uint8

const (
	Outside Visibility = iota
	Intersect
	Inside
)

func (v Visibility) String() string {
	switch v {
	case Outside:
		return "OUTSIDE"
	case Intersect:
		return "INTERSECT"
	case Inside:
		return "INSIDE"
	default:
		return "UNKNOWN"
	}
}

// Frustum отсекает параллелепипеды, выровненные по осям
type Frustum interface {
	TestBox(minX, minY, minZ, maxX, maxY, maxZ float32) Visibility
}

// IsBoxVisible true, если параллелепипед хотя бы частично внутри пирамиды
func IsBoxVisible(f Frustum, minX, minY, minZ, maxX, maxY, maxZ float32) bool {
	return f.TestBox(minX, minY, minZ, maxX, maxY, maxZ) != Outside
}

// PlaneFrustum пирамида из шести плоскостей (нормали направлены внутрь)
type PlaneFrustum struct {
	planes [6]mgl32.Vec4
}

// NewPlaneFrustum извлекает плоскости из матрицы projection*view (метод Gribb-Hartmann)
func NewPlaneFrustum(viewProj mgl32.Mat4) *PlaneFrustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	f := &PlaneFrustum{
		planes: [6]mgl32.Vec4{
			r3.Add(r0), // left
			r3.Sub(r0), // right
			r3.Add(r1), // bottom
			r3.Sub(r1), // top
			r3.Add(r2), // near
			r3.Sub(r2), // far
		},
	}

	for i, p := range f.planes {
		if l := p.Vec3().Len(); l > 0 {
			f.planes[i] = p.Mul(1 / l)
		}
	}

	return f
}

// TestBox классифицирует параллелепипед как OUTSIDE, INTERSECT или INSIDE
func (f *PlaneFrustum) TestBox(minX, minY, minZ, maxX, maxY, maxZ float32) Visibility {
	result := Inside

	for _, p := range f.planes {
		// Положительная вершина: самая дальняя вдоль нормали
		px, nx := maxX, minX
		if p[0] < 0 {
			px, nx = minX, maxX
		}
		py, ny := maxY, minY
		if p[1] < 0 {
			py, ny = minY, maxY
		}
		pz, nz := maxZ, minZ
		if p[2] < 0 {
			pz, nz = minZ, maxZ
		}

		if p[0]*px+p[1]*py+p[2]*pz+p[3] < 0 {
			return Outside
		}
		if p[0]*nx+p[1]*ny+p[2]*nz+p[3] < 0 {
			result = Intersect
		}
	}

	return result
}

// acceptAll пирамида, принимающая всё
type acceptAll struct{}

// AcceptAll возвращает пирамиду без отсечения (для тестов и отладочных камер)
func AcceptAll() Frustum {
	return acceptAll{}
}

func (acceptAll) TestBox(_, _, _, _, _, _ float32) Visibility {
	return Inside
}
