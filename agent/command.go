package agent

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"runtime"
	"time"

	"remcon/pkg/protocol"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// commandExecutor runs shell commands on behalf of the controller
type commandExecutor struct{}

func newCommandExecutor() *commandExecutor {
	return &commandExecutor{}
}

// execute runs one command through the platform shell. Failure is reported
// in-band through the result payload, never as an error.
func (e *commandExecutor) execute(req protocol.ExecCommandPayload) protocol.CommandResultPayload {
	result := protocol.CommandResultPayload{
		Success:  false,
		ExitCode: -1,
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/c", req.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", req.Command)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := e.decodeOutput(stdout.Bytes())
	errOutput := e.decodeOutput(stderr.Bytes())
	if errOutput != "" {
		if output != "" {
			output = output + "\n" + errOutput
		} else {
			output = errOutput
		}
	}
	result.Output = output

	if err != nil {
		result.Error = err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// decodeOutput converts shell output to UTF-8. Windows consoles emit GBK
// on Chinese locales.
func (e *commandExecutor) decodeOutput(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	if runtime.GOOS == "windows" {
		reader := transform.NewReader(bytes.NewReader(data), simplifiedchinese.GBK.NewDecoder())
		if decoded, err := io.ReadAll(reader); err == nil {
			return string(decoded)
		}
	}

	return string(data)
}
