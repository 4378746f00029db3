package block

import "sync"

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	AirBlockID    BlockID = iota // 0
	StoneBlockID                 // 1
	GrassBlockID                 // 2
	WaterBlockID                 // 3
	SandBlockID                  // 4
	DirtBlockID                  // 5
	GlassBlockID                 // 6
	LeavesBlockID                // 7
	LogBlockID                   // 8
	LavaBlockID                  // 9

	// Блоки с сущностями (начиная с 200)
	ChestBlockID BlockID = 200 // Сундук
	SignBlockID  BlockID = 201 // Табличка, рисуется вне экрана
)

// Layer слой отрисовки блока
type Layer uint8

const (
	LayerSolid Layer = iota
	LayerCutout
	LayerTranslucent
)

// Properties описывают блок для построения мешей и расчёта окклюзии
type Properties struct {
	Name string

	// Opaque полностью непрозрачный куб: закрывает соседние грани и свет
	Opaque bool

	// Invisible блок без геометрии (воздух)
	Invisible bool

	Layer Layer

	// AnimatedSprite имя анимированной текстуры, пусто если анимации нет
	AnimatedSprite string

	// BlockEntity тип блочной сущности, пусто если её нет
	BlockEntity string

	// RenderOffScreen сущность рисуется даже когда секция не видна
	RenderOffScreen bool
}

var (
	registry   = make(map[BlockID]Properties)
	registryMu sync.RWMutex
)

// Register добавляет описание блока в регистр
func Register(id BlockID, props Properties) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[id] = props
}

// Get возвращает описание для указанного ID
func Get(id BlockID) (Properties, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	props, exists := registry[id]
	return props, exists
}

// MustGet возвращает описание или описание воздуха для неизвестного ID
func MustGet(id BlockID) Properties {
	if props, ok := Get(id); ok {
		return props
	}
	return Properties{Name: "unknown", Invisible: true}
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := Get(id)
	return exists
}

// IsOpaque true для полностью непрозрачных блоков
func IsOpaque(id BlockID) bool {
	return MustGet(id).Opaque
}

func init() {
	Register(AirBlockID, Properties{Name: "air", Invisible: true})
	Register(StoneBlockID, Properties{Name: "stone", Opaque: true})
	Register(GrassBlockID, Properties{Name: "grass", Opaque: true})
	Register(DirtBlockID, Properties{Name: "dirt", Opaque: true})
	Register(SandBlockID, Properties{Name: "sand", Opaque: true})
	Register(LogBlockID, Properties{Name: "log", Opaque: true})
	Register(WaterBlockID, Properties{Name: "water", Layer: LayerTranslucent, AnimatedSprite: "water_still"})
	Register(GlassBlockID, Properties{Name: "glass", Layer: LayerCutout})
	Register(LeavesBlockID, Properties{Name: "leaves", Layer: LayerCutout})
	Register(LavaBlockID, Properties{Name: "lava", Opaque: true, AnimatedSprite: "lava_still"})
	Register(ChestBlockID, Properties{Name: "chest", Layer: LayerCutout, BlockEntity: "chest"})
	Register(SignBlockID, Properties{Name: "sign", Layer: LayerCutout, BlockEntity: "sign", RenderOffScreen: true})
}
