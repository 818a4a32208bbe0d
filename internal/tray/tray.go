// Package tray exposes Mudra's system tray menu: a detection toggle,
// the last recognized gesture, the model status line, and a retrain
// shortcut.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Callbacks are invoked from the tray's click loop. Any field may be
// nil, in which case the corresponding menu action is a no-op.
type Callbacks struct {
	Toggle   func(enabled bool)
	Retrain  func() error
	Settings func()
	Quit     func()
}

// Tray renders the menu and forwards clicks to the Callbacks.
type Tray struct {
	cb      Callbacks
	enabled bool
	mu      sync.Mutex

	toggleItem  *systray.MenuItem
	gestureItem *systray.MenuItem
	modelItem   *systray.MenuItem
}

// New creates a Tray. The initial toggle state comes from the caller,
// which typically restores it from the settings store.
func New(enabled bool, cb Callbacks) *Tray {
	return &Tray{cb: cb, enabled: enabled}
}

// Run hands control to systray and blocks until Quit is clicked.
func (t *Tray) Run() {
	systray.Run(t.buildMenu, func() {})
}

func (t *Tray) buildMenu() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Gesture Control")

	t.mu.Lock()
	t.toggleItem = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture recognition")
	systray.AddSeparator()

	t.gestureItem = systray.AddMenuItem("Last: none", "Last recognized gesture")
	t.gestureItem.Disable()
	t.modelItem = systray.AddMenuItem("Model: not trained", "Installed model status")
	t.modelItem.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	retrainItem := systray.AddMenuItem("Retrain Model", "Train on the collected samples")
	settingsItem := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Quit Mudra")

	go t.clickLoop(retrainItem, settingsItem, quitItem)
}

func (t *Tray) clickLoop(retrain, settings, quit *systray.MenuItem) {
	for {
		select {
		case <-t.toggleItem.ClickedCh:
			t.toggle()
		case <-retrain.ClickedCh:
			t.retrain()
		case <-settings.ClickedCh:
			if t.cb.Settings != nil {
				t.cb.Settings()
			}
		case <-quit.ClickedCh:
			if t.cb.Quit != nil {
				t.cb.Quit()
			}
			systray.Quit()
			return
		}
	}
}

func (t *Tray) toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.toggleItem.SetTitle(toggleTitle(enabled))
	t.mu.Unlock()

	// Callback runs outside the lock so it may call back into the tray.
	if t.cb.Toggle != nil {
		t.cb.Toggle(enabled)
	}
}

func (t *Tray) retrain() {
	if t.cb.Retrain == nil {
		return
	}
	if err := t.cb.Retrain(); err != nil {
		t.SetModelStatus("Model: " + err.Error())
		return
	}
	t.SetModelStatus("Model: training...")
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

// SetLastGesture updates the last-gesture line.
func (t *Tray) SetLastGesture(name string, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gestureItem == nil {
		return
	}
	if name == "" {
		t.gestureItem.SetTitle("Last: none")
		return
	}
	t.gestureItem.SetTitle(fmt.Sprintf("Last: %s (%.0f%%)", name, confidence*100))
}

// SetModelStatus updates the model-status line.
func (t *Tray) SetModelStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.modelItem != nil {
		t.modelItem.SetTitle(text)
	}
}

// IsEnabled reports the current toggle state.
func (t *Tray) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}
