package commands

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jo-hoe/goqr/internal/backend/commandstructure"
)

func TestLogoGeometry(t *testing.T) {
	tests := []struct {
		size         int
		wantSize     int
		wantPosition int
	}{
		{200, 50, 75},
		{300, 75, 112},
		{301, 75, 113},
		{400, 100, 150},
	}

	for _, tt := range tests {
		gotSize, gotPosition := LogoGeometry(tt.size, DefaultLogoRatio)
		if gotSize != tt.wantSize || gotPosition != tt.wantPosition {
			t.Errorf("LogoGeometry(%d) = (%d, %d), want (%d, %d)",
				tt.size, gotSize, gotPosition, tt.wantSize, tt.wantPosition)
		}
	}
}

func TestNewLogoOverlayCommand_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{
			name:   "Missing logo",
			params: map[string]any{},
		},
		{
			name:   "Empty logo",
			params: map[string]any{"logo": []byte{}},
		},
		{
			name:   "Logo of wrong type",
			params: map[string]any{"logo": 42},
		},
		{
			name:   "Zero ratio",
			params: map[string]any{"logo": []byte{1}, "ratio": 0.0},
		},
		{
			name:   "Ratio above one",
			params: map[string]any{"logo": []byte{1}, "ratio": 1.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLogoOverlayCommand(tt.params); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestLogoOverlayCommand_Placement(t *testing.T) {
	command, err := NewLogoOverlayCommandWithParams(makeSolidPNG(t, 100, 100, red), DefaultLogoRatio)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	result, err := command.Execute(makeSolidPNG(t, 300, 300, white))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	img := decodeTestPNG(t, result)
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 300 {
		t.Fatalf("Expected 300x300, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	checks := []struct {
		x, y int
		want string
	}{
		{112, 112, "red"},
		{186, 186, "red"},
		{150, 150, "red"},
		{111, 111, "white"},
		{187, 187, "white"},
		{0, 0, "white"},
	}
	for _, c := range checks {
		got := rgbaAt(img, c.x, c.y)
		want := white
		if c.want == "red" {
			want = red
		}
		if !near(got, want) {
			t.Errorf("pixel (%d,%d) = %+v, want %s", c.x, c.y, got, c.want)
		}
	}
}

func TestLogoOverlayCommand_NonSquareLogoIsCentred(t *testing.T) {
	// 100x50 contained in 75x75 becomes 75x37 with 19 transparent rows above
	command, err := NewLogoOverlayCommandWithParams(makeSolidPNG(t, 100, 50, red), DefaultLogoRatio)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	result, err := command.Execute(makeSolidPNG(t, 300, 300, white))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img := decodeTestPNG(t, result)

	if got := rgbaAt(img, 150, 112); !near(got, white) {
		t.Errorf("Expected white above the logo, got %+v", got)
	}
	if got := rgbaAt(img, 150, 131); !near(got, red) {
		t.Errorf("Expected first logo row at y=131, got %+v", got)
	}
	if got := rgbaAt(img, 150, 167); !near(got, red) {
		t.Errorf("Expected last logo row at y=167, got %+v", got)
	}
	if got := rgbaAt(img, 150, 168); !near(got, white) {
		t.Errorf("Expected white below the logo, got %+v", got)
	}
}

func TestLogoOverlayCommand_SmallLogoIsNotUpscaled(t *testing.T) {
	command, err := NewLogoOverlayCommandWithParams(makeSolidPNG(t, 20, 20, red), DefaultLogoRatio)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	result, err := command.Execute(makeSolidPNG(t, 300, 300, white))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img := decodeTestPNG(t, result)

	// 20px logo centred in the 75px box at 112
	if got := rgbaAt(img, 139, 139); got != red {
		t.Errorf("Expected red at (139,139), got %+v", got)
	}
	if got := rgbaAt(img, 158, 158); got != red {
		t.Errorf("Expected red at (158,158), got %+v", got)
	}
	if got := rgbaAt(img, 138, 138); got != white {
		t.Errorf("Expected white at (138,138), got %+v", got)
	}
	if got := rgbaAt(img, 159, 159); got != white {
		t.Errorf("Expected white at (159,159), got %+v", got)
	}
}

func TestLogoOverlayCommand_SVGLogo(t *testing.T) {
	svgLogo := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="10" height="10" fill="#00ff00"/></svg>`)
	command, err := NewLogoOverlayCommandWithParams(svgLogo, DefaultLogoRatio)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	result, err := command.Execute(makeSolidPNG(t, 300, 300, white))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img := decodeTestPNG(t, result)

	if got := rgbaAt(img, 150, 150); !near(got, green) {
		t.Errorf("Expected green logo centre, got %+v", got)
	}
	if got := rgbaAt(img, 100, 100); !near(got, white) {
		t.Errorf("Expected white outside the logo, got %+v", got)
	}
}

func TestLogoOverlayCommand_DoesNotMutateInput(t *testing.T) {
	command, err := NewLogoOverlayCommandWithParams(makeSolidPNG(t, 40, 40, red), DefaultLogoRatio)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	input := makeSolidPNG(t, 200, 200, white)
	original := append([]byte(nil), input...)

	if _, err := command.Execute(input); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !bytes.Equal(input, original) {
		t.Error("Execute modified the input buffer")
	}
}

func TestLogoOverlayCommand_CorruptLogo(t *testing.T) {
	command, err := NewLogoOverlayCommandWithParams([]byte("definitely not an image"), DefaultLogoRatio)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	_, err = command.Execute(makeSolidPNG(t, 200, 200, white))
	if err == nil {
		t.Fatal("Expected error for corrupt logo")
	}
	if !errors.Is(err, ErrCompositingFailure) {
		t.Errorf("Expected ErrCompositingFailure, got %v", err)
	}
}

func TestLogoOverlayCommand_NonSquareRaster(t *testing.T) {
	command, err := NewLogoOverlayCommandWithParams(makeSolidPNG(t, 10, 10, red), DefaultLogoRatio)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	_, err = command.Execute(makeSolidPNG(t, 200, 100, white))
	if !errors.Is(err, ErrCompositingFailure) {
		t.Errorf("Expected ErrCompositingFailure, got %v", err)
	}
}

func TestLogoOverlayCommand_ViaExecuteCommands(t *testing.T) {
	result, err := commandstructure.ExecuteCommands(makeSolidPNG(t, 200, 200, white), []commandstructure.CommandConfig{
		{Name: "LogoOverlayCommand", Params: map[string]any{"logo": makeSolidPNG(t, 50, 50, red)}},
	})
	if err != nil {
		t.Fatalf("ExecuteCommands failed: %v", err)
	}

	img := decodeTestPNG(t, result)
	if got := rgbaAt(img, 100, 100); !near(got, red) {
		t.Errorf("Expected red logo centre, got %+v", got)
	}
}
