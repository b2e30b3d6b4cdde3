// Command patchfw writes an image into a compiled badge firmware binary.
//
//	patchfw [firmware.bin] [image.png] [output.bin]
package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"badgeserver/internal/firmware"
	"badgeserver/internal/pixel"
)

// Defaults are relative to the repository root, the nearest directory
// above the working directory that holds a go.mod.
const (
	defaultFirmware = "firmware/main.bin"
	defaultImage    = "images/default.png"
)

// repoRoot returns the closest ancestor of dir containing go.mod, or dir
// itself when there is none.
func repoRoot(dir string) string {
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, "go.mod")); err == nil {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: patchfw [firmware.bin] [new_image.png] [output.bin]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintf(w, "  firmware.bin   - Input compiled firmware binary (default: %s)\n", defaultFirmware)
	fmt.Fprintf(w, "  new_image.png  - New image to insert (default: %s, will be resized to %dx%d)\n", defaultImage, pixel.TargetWidth, pixel.TargetHeight)
	fmt.Fprintln(w, "  output.bin     - Optional output path (default: patched-<HASH>.bin)")
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
		} else {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) > 3 {
		return errUsage
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	root := repoRoot(wd)

	firmwarePath := filepath.Join(root, defaultFirmware)
	imagePath := filepath.Join(root, defaultImage)
	outputPath := ""
	if len(args) > 0 {
		firmwarePath = args[0]
	}
	if len(args) > 1 {
		imagePath = args[1]
	}
	if len(args) > 2 {
		outputPath = args[2]
	}

	fw, err := os.ReadFile(firmwarePath)
	if err != nil {
		return fmt.Errorf("firmware file not readable: %w", err)
	}
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("image file not readable: %w", err)
	}

	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "Firmware Image Patcher")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintln(out, "\nStep 1: Converting image...")
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(imageBytes)); err == nil {
		fmt.Fprintf(out, "Input image size: %dx%d\n", cfg.Width, cfg.Height)
		if cfg.Width != pixel.TargetWidth || cfg.Height != pixel.TargetHeight {
			fmt.Fprintf(out, "Resizing to %dx%d\n", pixel.TargetWidth, pixel.TargetHeight)
		}
	}
	buf, err := pixel.Encode(imageBytes, pixel.TargetWidth, pixel.TargetHeight)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Converted to %dx%d, %d bytes\n", buf.Width, buf.Height, len(buf.Data))

	fmt.Fprintln(out, "\nStep 2: Patching firmware...")
	fmt.Fprintf(out, "Firmware size: %d bytes\n", len(fw))
	result, err := firmware.Patch(fw, buf.Data)
	if err != nil {
		var notFound *firmware.RegionNotFoundError
		if errors.As(err, &notFound) {
			fmt.Fprintln(out, "Make sure the firmware was compiled with the image data markers.")
		}
		return err
	}

	fmt.Fprintf(out, "Found image data at offset: 0x%04X\n", result.Image.Offset)
	fmt.Fprintf(out, "Image size in firmware: %d bytes\n", result.Image.Length)
	fmt.Fprintf(out, "Image hash (SHA256, first 8 bytes): %s\n", result.HashHex())
	if result.Hash == nil {
		fmt.Fprintln(out, "WARNING: Could not find hash section in firmware, hash not embedded.")
	} else {
		fmt.Fprintf(out, "Found hash section at offset: 0x%04X\n", result.Hash.Offset)
	}

	if outputPath == "" {
		outputPath = "patched-" + result.HashHex() + ".bin"
		fmt.Fprintf(out, "Auto-generated output filename: %s\n", outputPath)
	}
	if err := os.WriteFile(outputPath, result.Firmware, 0644); err != nil {
		return fmt.Errorf("failed to write patched firmware: %w", err)
	}
	fmt.Fprintf(out, "Patched firmware written to: %s\n", outputPath)

	// Read the file back so a truncated write is caught as well.
	written, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("failed to read back patched firmware: %w", err)
	}
	check := *result
	check.Firmware = written
	if err := firmware.Verify(&check, buf.Data); err != nil {
		fmt.Fprintln(out, "Verification: FAILED")
		return err
	}
	fmt.Fprintln(out, "Verification: SUCCESS - Image data correctly written")
	if result.Hash != nil {
		fmt.Fprintln(out, "Verification: SUCCESS - Hash correctly written")
	}

	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(out, "SUCCESS! Firmware patched successfully.")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	return nil
}
