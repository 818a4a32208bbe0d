package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/assets"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/infer"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/training"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	fmt.Println("Mudra - Gesture Session Engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.DatasetDir, cfg.ModelDir, cfg.PluginDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	ds, err := dataset.New(cfg.DatasetDir, cfg.SampleCap)
	if err != nil {
		log.Fatalf("Failed to initialize dataset store: %v", err)
	}

	registry := assets.New(cfg.ModelDir, ds,
		func(path string) (assets.Scaler, error) { return model.LoadScaler(path) },
		func(path string) (assets.Classifier, error) { return model.LoadClassifier(path) },
	)
	if snap, err := registry.TryReload(); err != nil {
		log.Printf("Existing model not loadable, starting cold: %v", err)
	} else if snap != nil {
		metrics.ModelReady.Set(1)
		log.Printf("Loaded trained model (%d gestures)", len(snap.Labels))
	}

	orch := training.New(training.Config{
		Data:         ds,
		Registry:     registry,
		Trainer:      selectTrainer(cfg),
		ScalerPath:   registry.ScalerPath(),
		ArtifactPath: registry.ClassifierPath(),
		Runs:         st.Runs(),
	})

	pluginMgr := action.NewManager(cfg.PluginDir)
	if err := pluginMgr.Discover(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	} else {
		log.Printf("Discovered %d plugins", len(pluginMgr.List()))
	}

	executor := action.NewExecutor(time.Duration(cfg.PluginTimeoutMs) * time.Millisecond)
	runner := action.NewPluginRunner(pluginMgr, executor, nil)
	dispatcher := action.NewDispatcher(runner, time.Duration(cfg.CooldownMs)*time.Millisecond, cfg.CoalesceActions)
	defer dispatcher.Stop()

	engine := infer.New(registry, dispatcher, cfg.Threshold)

	srv := server.New(server.Config{
		StaticDir:    cfg.StaticDir,
		Store:        st,
		Dataset:      ds,
		Registry:     registry,
		Engine:       engine,
		Orchestrator: orch,
	})

	var pipeline *app.App
	if cfg.LocalPipeline {
		pipeline = app.New(app.Config{
			Store:    st,
			Engine:   engine,
			CameraID: cfg.CameraID,
		})
		pipeline.SetEnabled(detectionEnabled(st))
		if err := pipeline.Start(); err != nil {
			log.Printf("Local pipeline failed to start: %v", err)
			pipeline = nil
		} else {
			defer pipeline.Stop()
		}
	}

	go func() {
		log.Printf("Listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if cfg.Headless {
		select {}
	}

	runTray(cfg, st, pipeline, registry, orch)
}

const detectionEnabledKey = "detection_enabled"

// detectionEnabled reads the persisted toggle state, defaulting to on.
func detectionEnabled(st *store.Store) bool {
	value, err := st.Settings().Get(detectionEnabledKey)
	if err != nil {
		return true
	}
	return value != "false"
}

// selectTrainer picks the external trainer when one is configured,
// otherwise the built-in centroid trainer.
func selectTrainer(cfg *config.Config) training.Trainer {
	if cfg.TrainerCmd == "" {
		return training.BuiltinTrainer{}
	}
	return &training.ExecTrainer{
		Command: strings.Fields(cfg.TrainerCmd),
		Timeout: time.Duration(cfg.TrainerTimeoutMs) * time.Millisecond,
	}
}

// runTray blocks serving the system tray until quit.
func runTray(cfg *config.Config, st *store.Store, pipeline *app.App, registry *assets.Registry, orch *training.Orchestrator) {
	t := tray.New(detectionEnabled(st), tray.Callbacks{
		Toggle: func(enabled bool) {
			if pipeline != nil {
				pipeline.SetEnabled(enabled)
			}
			value := "true"
			if !enabled {
				value = "false"
			}
			if err := st.Settings().Set(detectionEnabledKey, value); err != nil {
				log.Printf("Failed to persist toggle state: %v", err)
			}
		},
		Retrain: func() error {
			_, err := orch.Start(context.Background())
			return err
		},
		Settings: func() {
			openBrowser(settingsURL(cfg.Addr))
		},
		Quit: func() {
			log.Println("Shutting down")
		},
	})

	if snap, ok := registry.Current(); ok {
		t.SetModelStatus(fmt.Sprintf("Model: %d gestures", len(snap.Labels)))
	}
	if pipeline != nil {
		pipeline.SetGestureCallback(func(gesture string, confidence float64) {
			t.SetLastGesture(gesture, confidence)
		})
	}

	t.Run()
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// openBrowser opens the URL in the default browser.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
