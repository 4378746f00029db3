package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world"
	"github.com/annel0/voxel-render/internal/world/block"
)

// ErrNotReady возвращается после закрытия хранилища
var ErrNotReady = errors.New("storage not ready")

// ErrCorrupted возвращается при несовпадении контрольной суммы
var ErrCorrupted = errors.New("column record corrupted")

// WorldStorage представляет собой хранилище столбов мира
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	mutex   sync.RWMutex
	isReady bool
}

// columnRecord сериализуемое представление столба
type columnRecord struct {
	Coords        vec.Vec2       `json:"coords"`
	Bottom        int            `json:"bottom"`
	Sections      [][]byte       `json:"sections"` // nil для пустых секций
	BlockEntities []entityRecord `json:"block_entities,omitempty"`
}

type entityRecord struct {
	Pos  vec.Vec3 `json:"pos"`
	Kind string   `json:"kind"`
}

// NewWorldStorage создает новое хранилище мира
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		encoder: encoder,
		decoder: decoder,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	ws.decoder.Close()
	ws.encoder.Close()
	return ws.db.Close()
}

func columnKey(coords vec.Vec2) []byte {
	return []byte(fmt.Sprintf("column:%d:%d", coords.X, coords.Y))
}

// SaveColumn сохраняет столб целиком
func (ws *WorldStorage) SaveColumn(col *world.Column) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	col.Mu.RLock()
	record := columnRecord{
		Coords:   col.Coords,
		Bottom:   col.Bottom(),
		Sections: make([][]byte, len(col.Sections)),
	}
	for i, s := range col.Sections {
		if s.IsEmpty() {
			continue
		}
		record.Sections[i] = encodeBlocks(s.Blocks())
	}
	for pos, kind := range col.BlockEntities {
		record.BlockEntities = append(record.BlockEntities, entityRecord{Pos: pos, Kind: kind})
	}
	col.Mu.RUnlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("ошибка сериализации столба: %w", err)
	}

	compressed := ws.encoder.EncodeAll(data, nil)
	value := make([]byte, 8, 8+len(compressed))
	binary.LittleEndian.PutUint64(value, xxh3.Hash(compressed))
	value = append(value, compressed...)

	err = ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set(columnKey(record.Coords), value)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	col.Mu.Lock()
	col.ChangeCounter = 0
	col.Mu.Unlock()
	return nil
}

// LoadColumn загружает столб. Возвращает nil, nil если столб не сохранён.
func (ws *WorldStorage) LoadColumn(coords vec.Vec2, bottom, top int) (*world.Column, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	var value []byte
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(columnKey(coords))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	if len(value) < 8 || binary.LittleEndian.Uint64(value) != xxh3.Hash(value[8:]) {
		return nil, fmt.Errorf("column %v: %w", coords, ErrCorrupted)
	}

	data, err := ws.decoder.DecodeAll(value[8:], nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки столба: %w", err)
	}

	var record columnRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("ошибка десериализации столба: %w", err)
	}

	col := world.NewColumn(coords, bottom, top)
	for i, raw := range record.Sections {
		if raw == nil {
			continue
		}
		s := col.Section(record.Bottom + i)
		if s == nil {
			continue
		}
		blocks, err := decodeBlocks(raw)
		if err != nil {
			return nil, fmt.Errorf("column %v section %d: %w", coords, record.Bottom+i, err)
		}
		s.SetBlocks(blocks)
	}
	for _, e := range record.BlockEntities {
		col.BlockEntities[e.Pos] = e.Kind
	}
	return col, nil
}

// DeleteColumn удаляет сохранённый столб
func (ws *WorldStorage) DeleteColumn(coords vec.Vec2) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(columnKey(coords))
	})
}

// LoadOrGenerate загружает столб или генерирует его заново
func (ws *WorldStorage) LoadOrGenerate(gen *world.Generator, coords vec.Vec2, bottom, top int) (*world.Column, bool, error) {
	col, err := ws.LoadColumn(coords, bottom, top)
	if err != nil {
		return nil, false, err
	}
	if col != nil {
		return col, true, nil
	}
	return gen.GenerateColumn(coords, bottom, top), false, nil
}

func encodeBlocks(blocks [world.SectionVolume]block.BlockID) []byte {
	out := make([]byte, world.SectionVolume*2)
	for i, id := range blocks {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(id))
	}
	return out
}

func decodeBlocks(raw []byte) ([world.SectionVolume]block.BlockID, error) {
	var blocks [world.SectionVolume]block.BlockID
	if len(raw) != world.SectionVolume*2 {
		return blocks, fmt.Errorf("unexpected section length %d", len(raw))
	}
	for i := range blocks {
		blocks[i] = block.BlockID(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return blocks, nil
}
