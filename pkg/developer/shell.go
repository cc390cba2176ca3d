package developer

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"

	"github.com/goose-agent/core/pkg/message"
)

// shellRunner executes one command per call via the platform shell,
// capturing combined stdout/stderr, mirroring how stdio_transport.go
// spawns and waits on a child process.
type shellRunner struct{}

func newShellRunner() *shellRunner { return &shellRunner{} }

func (s *shellRunner) run(ctx context.Context, arguments map[string]interface{}) message.ToolResultOutcome {
	command, err := stringArg(arguments, "command")
	if err != nil {
		return invalidParams(err.Error())
	}

	shell, flag := "/bin/sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}

	cmd := exec.CommandContext(ctx, shell, flag, command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	text := out.String()
	if runErr != nil {
		if text == "" {
			text = runErr.Error()
		} else {
			text = text + "\n" + runErr.Error()
		}
		return execErr(text)
	}
	return message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: text}})
}
