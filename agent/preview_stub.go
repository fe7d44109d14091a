//go:build noscreenshot
// +build noscreenshot

package agent

import (
	"fmt"

	"remcon/pkg/protocol"
)

// capturePreview reports that this build was compiled without screen
// capture support.
func capturePreview(quality, monitor int32) (protocol.PreviewResponsePayload, error) {
	return protocol.PreviewResponsePayload{}, fmt.Errorf("screen capture disabled in this build")
}
