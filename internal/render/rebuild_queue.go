package render

// rebuildQueueCapacity сколько секций одного уровня ставится в очередь за кадр
const rebuildQueueCapacity = 32

// rebuildQueue кольцевая FIFO-очередь фиксированной ёмкости
type rebuildQueue struct {
	items [rebuildQueueCapacity]*Section
	head  int
	size  int
}

// offer добавляет секцию, если есть место
func (q *rebuildQueue) offer(s *Section) bool {
	if q.size == len(q.items) {
		return false
	}
	q.items[(q.head+q.size)%len(q.items)] = s
	q.size++
	return true
}

// poll возвращает самую старую секцию
func (q *rebuildQueue) poll() (*Section, bool) {
	if q.size == 0 {
		return nil, false
	}
	s := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return s, true
}

func (q *rebuildQueue) count() int {
	return q.size
}

func (q *rebuildQueue) isEmpty() bool {
	return q.size == 0
}

func (q *rebuildQueue) clear() {
	for q.size > 0 {
		q.poll()
	}
	q.head = 0
}
