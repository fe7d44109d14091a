//go:build !noscreenshot
// +build !noscreenshot

package agent

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"remcon/pkg/protocol"

	"github.com/kbinani/screenshot"
)

// capturePreview grabs one frame of the requested monitor as a JPEG
func capturePreview(quality, monitor int32) (protocol.PreviewResponsePayload, error) {
	var resp protocol.PreviewResponsePayload

	displays := screenshot.NumActiveDisplays()
	if displays == 0 {
		return resp, fmt.Errorf("no active displays")
	}
	if int(monitor) >= displays {
		return resp, fmt.Errorf("monitor %d out of range, %d displays available", monitor, displays)
	}

	bounds := screenshot.GetDisplayBounds(int(monitor))
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return resp, fmt.Errorf("capture failed: %w", err)
	}

	if quality < 1 || quality > 100 {
		quality = 80
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality)}); err != nil {
		return resp, fmt.Errorf("jpeg encode failed: %w", err)
	}

	resp.Image = buf.Bytes()
	resp.Quality = quality
	resp.Monitor = monitor
	resp.Resolution = protocol.Resolution{
		Width:  int32(bounds.Dx()),
		Height: int32(bounds.Dy()),
	}
	return resp, nil
}
