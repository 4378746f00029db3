package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации рендерера.
type Config struct {
	Render  RenderConfig  `yaml:"render"`
	Builder BuilderConfig `yaml:"builder"`
	World   WorldConfig   `yaml:"world"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// RenderConfig переключатели, читаемые менеджером секций один раз за кадр
type RenderConfig struct {
	RenderDistance     int  `yaml:"render_distance"`
	FogCulling         bool `yaml:"fog_culling"`
	AlwaysDeferUpdates bool `yaml:"always_defer_updates"`
	BlockFaceCulling   bool `yaml:"block_face_culling"`
	OcclusionCulling   bool `yaml:"occlusion_culling"`
}

// BuilderConfig параметры пула сборки мешей
type BuilderConfig struct {
	Workers        int `yaml:"workers"`          // 0 = определить по числу ядер
	TasksPerWorker int `yaml:"tasks_per_worker"` // бюджет отложенных задач на воркера
	CacheSections  int `yaml:"cache_sections"`   // размер кеша клонированных секций
}

// WorldConfig параметры генерируемого мира
type WorldConfig struct {
	Seed          int64 `yaml:"seed"`
	BottomSection int   `yaml:"bottom_section"`
	TopSection    int   `yaml:"top_section"`
}

// StorageConfig параметры хранилища колонок
type StorageConfig struct {
	Path string `yaml:"path"` // пусто = мир только в памяти
}

// MetricsConfig параметры Prometheus
type MetricsConfig struct {
	Port             int     `yaml:"port"`
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"` // доля кадров в OTLP трассировке, 0 = все
}

// LogConfig параметры логирования
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

var (
	ErrInvalidRenderDistance = errors.New("render_distance должен быть в диапазоне [2, 32]")
	ErrInvalidSectionRange   = errors.New("bottom_section должен быть меньше top_section")
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			RenderDistance:     12,
			FogCulling:         true,
			AlwaysDeferUpdates: false,
			BlockFaceCulling:   true,
			OcclusionCulling:   true,
		},
		Builder: BuilderConfig{
			Workers:        0,
			TasksPerWorker: 2,
			CacheSections:  4096,
		},
		World: WorldConfig{
			Seed:          12345,
			BottomSection: -4,
			TopSection:    20,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.Render.RenderDistance < 2 || c.Render.RenderDistance > 32 {
		return fmt.Errorf("%w: %d", ErrInvalidRenderDistance, c.Render.RenderDistance)
	}
	if c.World.BottomSection >= c.World.TopSection {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidSectionRange, c.World.BottomSection, c.World.TopSection)
	}
	if c.Builder.Workers < 0 {
		return fmt.Errorf("builder.workers не может быть отрицательным: %d", c.Builder.Workers)
	}
	if c.Builder.TasksPerWorker <= 0 {
		c.Builder.TasksPerWorker = 2
	}
	if c.Builder.CacheSections <= 0 {
		c.Builder.CacheSections = 4096
	}
	return nil
}

// GetMetricsPort возвращает порт Prometheus с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(m.Port, "RENDER_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV RENDER_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("RENDER_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
