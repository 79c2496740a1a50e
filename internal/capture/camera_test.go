package capture

import (
	"errors"
	"testing"
)

func TestNewCamera_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantFPS int
	}{
		{
			name:    "zero options",
			opts:    Options{},
			wantFPS: DefaultFPS,
		},
		{
			name:    "explicit fps",
			opts:    Options{DeviceID: 1, FPS: 15},
			wantFPS: 15,
		},
		{
			name:    "negative fps falls back",
			opts:    Options{FPS: -3},
			wantFPS: DefaultFPS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.opts)
			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be open before Open()")
			}
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{Width: 1280}.withDefaults()
	if got.Width != 1280 || got.Height != DefaultHeight || got.FPS != DefaultFPS {
		t.Errorf("withDefaults() = %+v", got)
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(Options{})

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(Options{})

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera = %v, want nil", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(Options{})

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		if mat.Cols() != DefaultWidth || mat.Rows() != DefaultHeight {
			t.Logf("frame is %dx%d; device may not support %dx%d", mat.Cols(), mat.Rows(), DefaultWidth, DefaultHeight)
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}
