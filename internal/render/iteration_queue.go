package render

import "github.com/annel0/voxel-render/internal/geom"

// iterationQueue фронт обхода в ширину: секции и направления входа
type iterationQueue struct {
	sections   []*Section
	directions []geom.Direction
}

func (q *iterationQueue) add(s *Section, dir geom.Direction) {
	q.sections = append(q.sections, s)
	q.directions = append(q.directions, dir)
}

func (q *iterationQueue) size() int {
	return len(q.sections)
}

func (q *iterationQueue) section(i int) *Section {
	return q.sections[i]
}

func (q *iterationQueue) direction(i int) geom.Direction {
	return q.directions[i]
}

func (q *iterationQueue) clear() {
	for i := range q.sections {
		q.sections[i] = nil
	}
	q.sections = q.sections[:0]
	q.directions = q.directions[:0]
}
