package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"badgeserver/internal/firmware"
	"badgeserver/internal/pixel"
)

func writeInputs(t *testing.T, slot int) (dir, fwPath, imgPath string) {
	t.Helper()
	dir = t.TempDir()

	var fw bytes.Buffer
	fw.WriteString("header")
	fw.Write(firmware.ImageStartMarker)
	fw.Write(make([]byte, slot))
	fw.Write(firmware.ImageEndMarker)
	fw.Write(firmware.HashStartMarker)
	fw.Write(make([]byte, firmware.HashSize))
	fw.Write(firmware.HashEndMarker)
	fwPath = filepath.Join(dir, "main.bin")
	if err := os.WriteFile(fwPath, fw.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	img := image.NewGray(image.Rect(0, 0, 120, 48))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	imgPath = filepath.Join(dir, "badge.png")
	if err := os.WriteFile(imgPath, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, fwPath, imgPath
}

func TestRun_ExplicitOutput(t *testing.T) {
	dir, fwPath, imgPath := writeInputs(t, pixel.Size(pixel.TargetWidth, pixel.TargetHeight))
	outPath := filepath.Join(dir, "out.bin")

	var out bytes.Buffer
	if err := run([]string{fwPath, imgPath, outPath}, &out); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	for _, want := range []string{"Input image size: 120x48", "Resizing to 240x96", "Found image data at offset: 0x", "Verification: SUCCESS", "SUCCESS!"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	patched, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	region, err := firmware.LocateImage(patched)
	if err != nil {
		t.Fatalf("LocateImage: %v", err)
	}
	slot := region.Slice(patched)
	// Upscaled 2x: the dark source pixel covers the top-left 2x2 block.
	if slot[0] != 0x3F || slot[30] != 0x3F || slot[60] != 0xFF {
		t.Errorf("unexpected leading bytes %02X %02X %02X", slot[0], slot[30], slot[60])
	}
}

func TestRun_AutoOutputName(t *testing.T) {
	_, fwPath, imgPath := writeInputs(t, pixel.Size(pixel.TargetWidth, pixel.TargetHeight))

	wd, _ := os.Getwd()
	work := t.TempDir()
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	var out bytes.Buffer
	if err := run([]string{fwPath, imgPath}, &out); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	matches, _ := filepath.Glob(filepath.Join(work, "patched-*.bin"))
	if len(matches) != 1 {
		t.Fatalf("expected one patched-<HASH>.bin, got %v", matches)
	}
	name := filepath.Base(matches[0])
	if hash := strings.TrimSuffix(strings.TrimPrefix(name, "patched-"), ".bin"); len(hash) != 16 || strings.ToUpper(hash) != hash {
		t.Errorf("unexpected output name %s", name)
	}
}

func TestRun_DefaultsResolveFromRepoRoot(t *testing.T) {
	_, fwPath, imgPath := writeInputs(t, pixel.Size(pixel.TargetWidth, pixel.TargetHeight))

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for src, dst := range map[string]string{fwPath: defaultFirmware, imgPath: defaultImage} {
		data, err := os.ReadFile(src)
		if err != nil {
			t.Fatal(err)
		}
		target := filepath.Join(root, filepath.FromSlash(dst))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	nested := filepath.Join(root, "cmd", "patchfw")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	var out bytes.Buffer
	if err := run(nil, &out); err != nil {
		t.Fatalf("run with defaults from a subdirectory: %v\n%s", err, out.String())
	}
	if matches, _ := filepath.Glob(filepath.Join(nested, "patched-*.bin")); len(matches) != 1 {
		t.Errorf("expected output in the working directory, got %v", matches)
	}
}

func TestRepoRoot_NearestGoMod(t *testing.T) {
	root := t.TempDir()
	inner := filepath.Join(root, "tools")
	deep := filepath.Join(inner, "a", "b")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{root, inner} {
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if got := repoRoot(deep); got != inner {
		t.Errorf("repoRoot(%s) = %s, want %s", deep, got, inner)
	}
	if got := repoRoot(root); got != root {
		t.Errorf("repoRoot(%s) = %s, want %s", root, got, root)
	}
}

func TestRun_Failures(t *testing.T) {
	_, fwPath, imgPath := writeInputs(t, 100)

	if err := run([]string{"a", "b", "c", "d"}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("too many args: got %v", err)
	}
	if err := run([]string{filepath.Join(t.TempDir(), "missing.bin"), imgPath}, &bytes.Buffer{}); err == nil {
		t.Error("missing firmware should fail")
	}

	err := run([]string{fwPath, imgPath, filepath.Join(t.TempDir(), "out.bin")}, &bytes.Buffer{})
	var sizeErr *firmware.SizeMismatchError
	if !errors.As(err, &sizeErr) {
		t.Errorf("expected SizeMismatchError, got %v", err)
	}
}
