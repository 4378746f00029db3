package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chewxy/math32"
	"github.com/getsentry/sentry-go"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/voxel-render/internal/config"
	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/logging"
	"github.com/annel0/voxel-render/internal/observability"
	"github.com/annel0/voxel-render/internal/render"
	"github.com/annel0/voxel-render/internal/render/compile"
	"github.com/annel0/voxel-render/internal/render/device"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/storage"
	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world"
	"github.com/annel0/voxel-render/internal/world/block"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	frames := flag.Int("frames", 600, "количество кадров, 0 = до сигнала")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := logging.InitDefaultLogger("renderbench", cfg.Log.Dir); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logging.Warn("Неизвестный уровень логирования %q, используется INFO", cfg.Log.Level)
		level = logging.INFO
	}
	for _, component := range []string{"render", "builder", "world", "storage"} {
		if err := logging.GetComponentLogger(component).EnableFile(cfg.Log.Dir, logging.TRACE); err != nil {
			logging.Warn("Файл логов %s не открыт: %v", component, err)
		}
		_ = logging.GetLoggerManager().SetLogLevel(component, level, logging.TRACE)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			logging.Warn("Sentry не инициализирован: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown, err := observability.InitTelemetry(ctx, observability.TelemetryOptions{
			ServiceName: "renderbench",
			SampleRatio: cfg.Metrics.TraceSampleRatio,
			Workers:     cfg.Builder.Workers,
		})
		if err != nil {
			logging.Warn("OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	if err := run(ctx, cfg, *frames); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("❌ Ошибка: %v", err)
		os.Exit(1)
	}

	logging.Info("👋 Завершено")
}

func run(ctx context.Context, cfg *config.Config, frames int) error {
	renderLog := logging.GetRenderLogger()

	// === МИР ===
	w := world.NewWorld(cfg.World.BottomSection, cfg.World.TopSection, cfg.Builder.CacheSections)
	gen := world.NewGenerator(cfg.World.Seed)

	var store *storage.WorldStorage
	if cfg.Storage.Path != "" {
		var err error
		store, err = storage.NewWorldStorage(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()
	}

	// === РЕНДЕР ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dev := device.NewHeadless()
	renderer := device.NewCountingRenderer()
	pool := compile.NewPool(cfg.Builder.Workers, cfg.Builder.TasksPerWorker, logging.GetBuilderLogger())

	env := &render.Env{
		Config:  &cfg.Render,
		Logger:  renderLog,
		Metrics: render.NewMetrics(registry),
	}
	manager := render.NewSectionManager(env, w, pool, dev, renderer, cfg.Render.RenderDistance)
	defer manager.Destroy()

	w.SetListener(manager)

	radius := cfg.Render.RenderDistance + 1
	loaded := 0
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			col, err := loadColumn(store, gen, vec.Vec2{X: x, Y: z}, cfg.World)
			if err != nil {
				return err
			}
			if err := w.AddColumn(col); err != nil {
				return err
			}
			loaded++
		}
	}
	renderLog.Info("🌍 Загружено столбов: %d, секций: %d", loaded, manager.TotalSections())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	addr := fmt.Sprintf(":%d", cfg.Metrics.GetMetricsPort())
	server := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}

	g.Go(func() error {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		defer cancel()
		err := renderLoop(ctx, manager, w, renderer, cfg, frames)
		if store != nil {
			if saveErr := saveColumns(store, w); saveErr != nil && err == nil {
				err = saveErr
			}
		}
		return err
	})

	return g.Wait()
}

// loadColumn читает столб с диска или генерирует его
func loadColumn(store *storage.WorldStorage, gen *world.Generator, coords vec.Vec2, wc config.WorldConfig) (*world.Column, error) {
	if store == nil {
		return gen.GenerateColumn(coords, wc.BottomSection, wc.TopSection), nil
	}

	col, _, err := store.LoadOrGenerate(gen, coords, wc.BottomSection, wc.TopSection)
	if err != nil {
		return nil, fmt.Errorf("load column %v: %w", coords, err)
	}
	return col, nil
}

func saveColumns(store *storage.WorldStorage, w *world.World) error {
	saved := 0
	for _, coords := range w.Columns() {
		col := w.Column(coords.X, coords.Y)
		if col == nil || col.ChangeCounter == 0 {
			continue
		}
		if err := store.SaveColumn(col); err != nil {
			return err
		}
		saved++
	}
	logging.GetStorageLogger().Info("💾 Сохранено изменённых столбов: %d", saved)
	return nil
}

// renderLoop двигает камеру по кругу, изменяет блоки и рисует кадры
func renderLoop(ctx context.Context, manager *render.SectionManager, w *world.World, renderer *device.CountingRenderer, cfg *config.Config, frames int) error {
	renderLog := logging.GetRenderLogger()
	rng := rand.New(rand.NewSource(cfg.World.Seed))

	fov := mgl32.DegToRad(70)
	projection := mgl32.Perspective(fov, 16.0/9.0, 0.05, float32(cfg.Render.RenderDistance*16+64))
	fogEnd := float32(cfg.Render.RenderDistance * 16)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for frame := 1; frames == 0 || frame <= frames; frame++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		angle := float32(frame) * 0.01
		eye := mgl32.Vec3{24 * math32.Cos(angle), 90, 24 * math32.Sin(angle)}
		center := eye.Add(mgl32.Vec3{math32.Cos(angle + 1.5), -0.3, math32.Sin(angle + 1.5)})
		modelView := mgl32.LookAtV(eye, center, mgl32.Vec3{0, 1, 0})
		frustum := geom.NewPlaneFrustum(projection.Mul4(modelView))

		camera := render.Camera{Pos: eye, FogEnd: fogEnd}

		if frame%30 == 0 {
			editRandomBlock(w, rng, eye)
		}

		manager.Update(camera, frustum, frame, false)
		if err := manager.UpdateChunks(ctx); err != nil {
			return err
		}
		manager.TickVisibleRenders()

		matrices := device.Matrices{Projection: projection, ModelView: modelView}
		for _, pass := range state.AllPasses {
			manager.RenderLayer(matrices, pass)
		}

		if frame%120 == 0 {
			stats := renderer.Stats()
			renderLog.Info("🎞 Кадр %d: видимо %d, вызовов %v, вершин %v",
				frame, manager.VisibleSectionCount(), stats.DrawCalls, stats.Vertices)
			for _, line := range manager.DebugStrings() {
				renderLog.Debug("%s", line)
			}
			renderLog.Debug("%s", manager.Regions().GetStats())
		}
	}
	return nil
}

// editRandomBlock ставит или убирает блок рядом с камерой
func editRandomBlock(w *world.World, rng *rand.Rand, eye mgl32.Vec3) {
	pos := vec.Vec3{
		X: int(eye.X()) + rng.Intn(32) - 16,
		Y: 40 + rng.Intn(40),
		Z: int(eye.Z()) + rng.Intn(32) - 16,
	}

	id := block.GlassBlockID
	if w.GetBlock(pos) != block.AirBlockID {
		id = block.AirBlockID
	}

	if err := w.SetBlock(pos, id, rng.Intn(4) == 0); err != nil {
		logging.GetWorldLogger().Warn("Не удалось изменить блок %v: %v", pos, err)
	}
}
