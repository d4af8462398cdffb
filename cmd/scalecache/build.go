package main

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/scalecache"
	asynchook "github.com/unkn0wn-root/scalecache/hooks/async"
	"github.com/unkn0wn-root/scalecache/internal/config"
	"github.com/unkn0wn-root/scalecache/internal/logging"
	"github.com/unkn0wn-root/scalecache/internal/wire"
	cachelog "github.com/unkn0wn-root/scalecache/log/logrus"
	"github.com/unkn0wn-root/scalecache/raster"
	"github.com/unkn0wn-root/scalecache/sloghooks"
)

// slowGenerate is when a level generation is worth an Info line.
const slowGenerate = 250 * time.Millisecond

type buildFlags struct {
	input   string
	dog     bool
	outDir  string
	rawFile string
	export  string
}

func newBuildCmd() *cobra.Command {
	var bf buildFlags
	cmd := &cobra.Command{
		Use:   "build --input IMAGE",
		Short: "Materialise pyramid levels for an image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), cmd, cfg, bf)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&bf.input, "input", "i", "", "PNG, JPEG or GIF image")
	fl.BoolVar(&bf.dog, "dog", false, "also build difference-of-Gaussian levels between adjacent scales")
	fl.StringVar(&bf.outDir, "out", "", "directory to write one PNG per pyramid level")
	fl.StringVar(&bf.rawFile, "raw", "", "file to write every stored raster as a wire stack")
	fl.StringVar(&bf.export, "export", "", "file to write the snapshot to")
	fl.String("format", "", "pixel format: gray8, grayf32, rgb8, rgbf32")
	fl.Float64("base-scale", 0, "blur of the input image in pixels")
	fl.Int("octaves", 0, "octaves to build")
	fl.Int("steps", 0, "levels per octave")
	fl.Int("workers", 0, "concurrent level requests")
	fl.Bool("coalesce", false, "coalesce concurrent misses on the same level")
	fl.String("export-format", "", "snapshot encoding: json, cbor, msgpack, protobuf")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// flagKeys maps CLI flags onto config keys.
var flagKeys = map[string]string{
	"format":        "format",
	"base-scale":    "base_scale",
	"octaves":       "octaves",
	"steps":         "steps_per_octave",
	"workers":       "workers",
	"coalesce":      "coalesce",
	"export-format": "export",
}

// loadConfig layers changed flags over file and env settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := map[string]any{}
	if logLevel != "" {
		overrides["log_level"] = logLevel
	}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		overrides[key] = f.Value.String()
	}
	return config.Load(configFile, overrides)
}

func runBuild(ctx context.Context, cmd *cobra.Command, cfg *config.Config, bf buildFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := logging.InitLogger(cfg)
	if err != nil {
		return err
	}

	src, err := loadImage(bf.input, cfg.PixelFormat())
	if err != nil {
		return err
	}

	hooks := asynchook.New(newHookSink(logger), 1, 1024)
	defer func() {
		hooks.Close()
		if n := hooks.Dropped(); n > 0 {
			logger.WithField("dropped", n).Warn("hook events dropped")
		}
	}()

	cache, err := scalecache.New(scalecache.Options{
		Logger:         cachelog.New(logger),
		Hooks:          hooks,
		CoalesceMisses: cfg.Coalesce,
	})
	if err != nil {
		return err
	}
	if _, err := cache.SetOriginalRaster(src, cfg.BaseScale); err != nil {
		return err
	}

	levels, err := buildLevels(ctx, cache, cfg)
	if err != nil {
		return err
	}
	if bf.dog {
		if err := buildDoG(ctx, cache, cfg, levels); err != nil {
			return err
		}
	}

	logger.WithFields(logrus.Fields{
		"entries": cache.Len(),
		"bytes":   cache.MemoryUsed(),
	}).Info("pyramid built")

	if err := cache.Dump(cmd.OutOrStdout()); err != nil {
		return err
	}
	if bf.outDir != "" {
		if err := writePNGs(bf.outDir, levels); err != nil {
			return err
		}
	}
	if bf.rawFile != "" {
		if err := writeRaw(bf.rawFile, cache); err != nil {
			return err
		}
	}
	if bf.export != "" {
		if err := writeExport(bf.export, exportFormat(cfg.Export, bf.export), cache.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

// newHookSink logs cache events next to the logrus output, sampling hits.
func newHookSink(l *logrus.Logger) scalecache.Hooks {
	level := slog.LevelError
	switch l.GetLevel() {
	case logrus.TraceLevel, logrus.DebugLevel:
		level = slog.LevelDebug
	case logrus.InfoLevel:
		level = slog.LevelInfo
	case logrus.WarnLevel:
		level = slog.LevelWarn
	}
	sl := slog.New(slog.NewJSONHandler(l.Out, &slog.HandlerOptions{Level: level}))
	return sloghooks.New(sl, sloghooks.Options{HitEvery: 100, SlowGenerate: slowGenerate})
}

func loadImage(path string, f raster.Format) (*raster.Raster, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return raster.FromImage(img, f)
}

// buildLevels requests every configured scale at its octave width,
// cfg.Workers at a time. The result is sorted by scale.
func buildLevels(ctx context.Context, c *scalecache.Cache, cfg *config.Config) ([]*scalecache.PyramidEntry, error) {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)

	var mu sync.Mutex
	var levels []*scalecache.PyramidEntry
	for _, s := range cfg.Scales() {
		eg.Go(func() error {
			e, err := c.Pyramid(egCtx, cfg.PixelFormat(), s, 0)
			if err != nil {
				return fmt.Errorf("level %.4g: %w", s, err)
			}
			mu.Lock()
			levels = append(levels, e)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Scale() < levels[j].Scale() })
	return levels, nil
}

func buildDoG(ctx context.Context, c *scalecache.Cache, cfg *config.Config, levels []*scalecache.PyramidEntry) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for i := 1; i < len(levels); i++ {
		lo, hi := levels[i-1], levels[i]
		if lo.Width() != hi.Width() {
			continue // octave step, no common width
		}
		eg.Go(func() error {
			_, err := c.Get(egCtx, scalecache.NewDoGEntry(cfg.PixelFormat(), lo.Scale(), hi.Scale(), lo.Width()))
			return err
		})
	}
	return eg.Wait()
}

func writePNGs(dir string, levels []*scalecache.PyramidEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, e := range levels {
		img, err := e.Payload().Image()
		if err != nil {
			return err
		}
		name := filepath.Join(dir, fmt.Sprintf("%02d_s%.4g_w%d.png", i, e.Scale(), e.Width()))
		if err := writeFile(name, func(fh *os.File) error { return png.Encode(fh, img) }); err != nil {
			return err
		}
	}
	return nil
}

func writeRaw(path string, c *scalecache.Cache) error {
	var items []wire.StackItem
	c.Visit(func(e scalecache.Entry) bool {
		items = append(items, wire.StackItem{Name: e.String(), Scale: entryScale(e), Raster: e.Payload()})
		return true
	})
	return os.WriteFile(path, wire.EncodeStack(items), 0o644)
}

func entryScale(e scalecache.Entry) float64 {
	if s, ok := e.(interface{ Scale() float64 }); ok {
		return s.Scale()
	}
	return 0
}

func exportFormat(configured, path string) string {
	if configured != "" {
		return strings.ToLower(configured)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		return "cbor"
	case ".msgpack", ".mpk":
		return "msgpack"
	case ".pb", ".protobuf":
		return "protobuf"
	}
	return "json"
}

func writeFile(path string, fn func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
