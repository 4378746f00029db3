package region

import (
	"fmt"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/device"
)

// Manager управляет регионами секций. Используется только из потока рендера.
type Manager struct {
	device  device.Device
	regions map[Key]*Region
	stats   ManagerStats
}

// ManagerStats статистика регионов
type ManagerStats struct {
	Created int
	Deleted int
}

// NewManager создаёт менеджер регионов
func NewManager(dev device.Device) *Manager {
	return &Manager{
		device:  dev,
		regions: make(map[Key]*Region),
	}
}

// CreateRegionForSection возвращает регион секции, создавая его при необходимости
func (m *Manager) CreateRegionForSection(x, y, z int) *Region {
	key := KeyForSection(x, y, z)

	region, exists := m.regions[key]
	if !exists {
		region = newRegion(key, m.device)
		m.regions[key] = region
		m.stats.Created++
	}
	return region
}

// Get возвращает регион секции или nil
func (m *Manager) Get(x, y, z int) *Region {
	return m.regions[KeyForSection(x, y, z)]
}

// UpdateVisibility проверяет все регионы пирамидой видимости
func (m *Manager) UpdateVisibility(frustum geom.Frustum) {
	for _, region := range m.regions {
		region.UpdateVisibility(frustum)
	}
}

// Cleanup удаляет пустые регионы и освобождает пустые арены
func (m *Manager) Cleanup() {
	for key, region := range m.regions {
		if region.IsEmpty() {
			region.delete()
			delete(m.regions, key)
			m.stats.Deleted++
			continue
		}
		region.releaseEmptyArena()
	}
}

// Delete удаляет все регионы
func (m *Manager) Delete() {
	for key, region := range m.regions {
		region.delete()
		delete(m.regions, key)
		m.stats.Deleted++
	}
}

// LoadedRegions возвращает все регионы
func (m *Manager) LoadedRegions() []*Region {
	out := make([]*Region, 0, len(m.regions))
	for _, region := range m.regions {
		out = append(out, region)
	}
	return out
}

// Stats возвращает статистику
func (m *Manager) Stats() ManagerStats {
	return m.stats
}

// GetStats возвращает статистику строкой
func (m *Manager) GetStats() string {
	var arenas int
	var used, allocated int64
	for _, region := range m.regions {
		if a := region.Arena(); a != nil {
			arenas++
			used += a.UsedMemory()
			allocated += a.AllocatedMemory()
		}
	}

	return fmt.Sprintf("RegionManager: %d regions, %d arenas, %d/%d bytes used/alloc",
		len(m.regions), arenas, used, allocated)
}
