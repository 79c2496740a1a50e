package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/ayusman/carousel/internal/app"
	"github.com/ayusman/carousel/internal/config"
	"github.com/ayusman/carousel/internal/server"
	"github.com/ayusman/carousel/internal/store"
	"github.com/ayusman/carousel/internal/tray"
)

// The OpenCV window and the tray both need the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "carousel:", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := defaultDataDir()

	var (
		configPath = flag.String("config", filepath.Join(dataDir, "config.toml"), "path to the TOML config file")
		addr       = flag.String("addr", "", "HTTP listen address (overrides the config)")
		dbPath     = flag.String("db", "", "SQLite database path")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn or error")
		logFormat  = flag.String("log-format", "", "log format: text or json")
		headless   = flag.Bool("headless", false, "do not open a window")
		useTray    = flag.Bool("tray", false, "run from a system tray menu instead of a window")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}

	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := NewLogger(os.Stderr, level, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Store.Path == "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		cfg.Store.Path = filepath.Join(dataDir, "carousel.db")
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	slog.Info("store opened", "path", cfg.Store.Path)

	if cfg.Plugins.Dir == "" {
		cfg.Plugins.Dir = findDir("plugins", dataDir)
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = findDir("web", dataDir)
	}

	var (
		a       *app.App
		window  *windowDisplay
		display app.Display
	)
	if cfg.Display.Window && !*headless && !*useTray {
		window = newWindowDisplay(cfg.Display.Title, cfg.Display.Width, cfg.Display.Height, func() {
			a.SetEnabled(!a.IsEnabled())
		})
		defer window.Close()
		display = window
	}

	a, err = app.New(app.Options{Config: cfg, Store: st, Display: display})
	if err != nil {
		return err
	}
	defer a.Close()

	serverDone := make(chan struct{})
	if cfg.Server.Addr != "" {
		srv := server.New(server.Config{
			StaticDir: cfg.Server.StaticDir,
			Store:     st,
			Carousel:  a,
			Plugins:   a.Plugins(),
		})
		go func() {
			defer close(serverDone)
			if err := srv.Serve(ctx, cfg.Server.Addr); err != nil {
				slog.Error("http server failed", "err", err)
				stop()
			}
		}()
	} else {
		close(serverDone)
	}

	switch {
	case *useTray:
		err = runTray(ctx, stop, a, viewerURL(cfg.Server.Addr))
	case window != nil:
		err = a.Run(ctx)
	default:
		if err = a.Start(); err == nil {
			<-ctx.Done()
		}
	}

	stop()
	<-serverDone
	return err
}

// runTray blocks in the tray's event loop until Quit or ctx is done.
func runTray(ctx context.Context, quit func(), a *app.App, viewer string) error {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnOpenViewer(func() {
		if err := openBrowser(viewer); err != nil {
			slog.Warn("failed to open viewer", "url", viewer, "err", err)
		}
	})
	t.OnQuit(quit)
	a.OnSelect(func(s app.Selection) {
		t.SetLastSelection(s.Caption)
	})

	if err := a.Start(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".carousel"
	}
	return filepath.Join(home, ".carousel")
}

// findDir searches for a directory named name in the working directory,
// its parents and the data directory. It returns "" if none exists.
func findDir(name, dataDir string) string {
	candidates := []string{
		name,
		filepath.Join("..", name),
		filepath.Join("..", "..", name),
		filepath.Join(dataDir, name),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func viewerURL(addr string) string {
	if addr == "" {
		return ""
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr + "/"
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	if url == "" {
		return errors.New("http server is disabled")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
