package render

// UpdateType уровень ожидающего обновления секции. Больше значит срочнее.
type UpdateType uint8

const (
	UpdateNone UpdateType = iota
	UpdateRebuild
	UpdateInitialBuild
	UpdateImportantRebuild
)

// updateTypeCount количество уровней, включая UpdateNone
const updateTypeCount = 4

// IsImportant true для обновлений, ожидаемых в том же кадре
func (t UpdateType) IsImportant() bool {
	return t == UpdateImportantRebuild
}

func (t UpdateType) String() string {
	switch t {
	case UpdateNone:
		return "none"
	case UpdateRebuild:
		return "rebuild"
	case UpdateInitialBuild:
		return "initial_build"
	case UpdateImportantRebuild:
		return "important_rebuild"
	}
	return "unknown"
}
