// Package wailsapp provides the Wails-based GUI for PatchDesk.
package wailsapp

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/packwisely/patchdesk/internal/config"
	"github.com/packwisely/patchdesk/internal/coordinator"
	"github.com/packwisely/patchdesk/internal/core"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/ipc"
	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/notify"
	"github.com/packwisely/patchdesk/internal/version"
)

// Assets holds the embedded frontend files, passed in from main package.
var Assets embed.FS

// wailsLogger is the package-level logger for GUI mode
var wailsLogger = logging.NewLogger("wails")

// viewInterval bounds how often snapshots are pushed to the webview.
const viewInterval = 50 * time.Millisecond

// App is the main Wails application struct.
// All public methods are exposed to the frontend as callable functions.
type App struct {
	ctx    context.Context
	config *config.Config

	client  *ipc.Client
	bus     *events.EventBus
	session *core.Session
	bridge  *ViewBridge
	picker  coordinator.Picker
	notify  *notify.Notifier

	// connectErr is the reason startup could not reach the worker.
	connectErr error
}

// NewApp creates a new Wails application instance.
func NewApp(cfg *config.Config) *App {
	return &App{
		config: cfg,
		notify: notify.NewNotifier(cfg.Notify.Enabled, wailsLogger),
	}
}

// startup is called when the app starts. It connects to the worker and
// starts the session; the page stays locked until domReady.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.picker = coordinator.PickerFunc(func(_ context.Context, title string) (string, error) {
		return runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
			Title:                title,
			CanCreateDirectories: true,
		})
	})

	bus := events.NewEventBus()
	client, err := ipc.Dial(ctx, a.config.Worker.Socket, a.config.DialTimeout(), bus)
	if err != nil {
		bus.Close()
		a.connectErr = err
		wailsLogger.Error().Err(err).Str("address", a.config.Worker.Socket).Msg("Failed to connect to worker")
		return
	}
	a.client = client

	if err := a.attach(ctx, client, bus, runtime.EventsEmit); err != nil {
		a.connectErr = err
		wailsLogger.Error().Err(err).Msg("Failed to start session")
		return
	}
	wailsLogger.Info().Str("address", client.Addr()).Msg("Wails application started")
}

// attach starts a session on worker and forwards its page through emit.
func (a *App) attach(ctx context.Context, worker core.Worker, bus *events.EventBus, emit EmitFunc) error {
	a.bus = bus
	a.bridge = NewViewBridge(ctx, emit, viewInterval)
	a.bridge.Start()

	session, err := core.NewSession(ctx, worker, bus, core.Options{
		SizeFormat: a.config.SizeFormat(),
		Sink:       a.bridge,
	})
	if err != nil {
		a.bridge.Stop()
		return err
	}
	session.Start()

	// Notifications block on the platform service; keep them off the loop.
	err = session.OnSettle(ctx, func(kind models.OperationKind, err error) {
		go a.notify.Settled(kind, err)
	})
	if err != nil {
		session.Close()
		a.bridge.Stop()
		return err
	}
	a.session = session
	return nil
}

// domReady is called after the frontend DOM is ready. Deferred unlocks run now.
func (a *App) domReady(ctx context.Context) {
	if a.session == nil {
		return
	}
	if err := a.session.MarkInteractive(ctx); err != nil {
		wailsLogger.Warn().Err(err).Msg("Failed to mark page interactive")
		return
	}
	wailsLogger.Debug().Msg("Frontend DOM ready")
}

// beforeClose is called when the window close is requested.
// Return true to prevent closing.
func (a *App) beforeClose(ctx context.Context) bool {
	return false
}

// shutdown is called at application termination. Outstanding requests are
// abandoned; the worker keeps running them.
func (a *App) shutdown(ctx context.Context) {
	wailsLogger.Info().Msg("Wails application shutting down")

	if a.session != nil {
		a.session.Close()
	}
	if a.bridge != nil {
		a.bridge.Stop()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	CloseFileLogger()
}

// onSecondInstance focuses the existing window when the app is launched again.
func (a *App) onSecondInstance(data options.SecondInstanceData) {
	wailsLogger.Debug().Strs("args", data.Args).Msg("Second instance launched")
	runtime.WindowUnminimise(a.ctx)
	runtime.Show(a.ctx)
}

// Run launches the Wails GUI application.
func Run(cfg *config.Config) error {
	if goruntime.GOOS == "linux" {
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return fmt.Errorf("GUI mode requires a display. No display detected.\n" +
				"DISPLAY and WAYLAND_DISPLAY are not set.\n" +
				"Use a patchdesk subcommand for CLI mode")
		}
	}

	if err := InitFileLogger(); err != nil {
		wailsLogger.Warn().Err(err).Msg("File logging disabled")
	}

	app := NewApp(cfg)
	err := wails.Run(&options.App{
		Title:     "PatchDesk",
		Width:     760,
		Height:    600,
		MinWidth:  560,
		MinHeight: 480,
		AssetServer: &assetserver.Options{
			Assets: Assets,
		},
		BackgroundColour: &options.RGBA{R: 248, G: 250, B: 252, A: 1},
		OnStartup:        app.startup,
		OnDomReady:       app.domReady,
		OnBeforeClose:    app.beforeClose,
		OnShutdown:       app.shutdown,
		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId:               "com.packwisely.patchdesk",
			OnSecondInstanceLaunch: app.onSecondInstance,
		},
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			About: &mac.AboutInfo{
				Title:   "PatchDesk",
				Message: fmt.Sprintf("Version %s", version.String()),
			},
		},
		Windows: &windows.Options{
			WebviewBrowserPath: webView2BrowserPath(),
		},
		Linux: &linux.Options{
			ProgramName: "patchdesk",
		},
	})
	if err != nil {
		return fmt.Errorf("wails application error: %w", err)
	}
	return nil
}

// webView2BrowserPath returns a WebView2 Fixed Version Runtime shipped next
// to the executable, or "" to use the system runtime.
func webView2BrowserPath() string {
	if goruntime.GOOS != "windows" {
		return ""
	}
	exePath, err := os.Executable()
	if err != nil {
		return ""
	}
	dir := filepath.Join(filepath.Dir(exePath), "webview2")
	if _, err := os.Stat(filepath.Join(dir, "msedgewebview2.exe")); err != nil {
		return ""
	}
	return dir
}
