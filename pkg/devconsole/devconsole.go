// Package devconsole connects a text developer console to the command
// dispatcher. A console line is split into a command and its arguments and
// the reply is a small JSON array: ["ok", result] or ["error", message].
package devconsole

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/EllipseGrip/extension/internal/dispatcher"
	"github.com/EllipseGrip/extension/internal/util"
)

// Built-in commands answered by the bridge itself.
const (
	CmdVersion   = ":VERSION:"
	CmdTimestamp = ":TIMESTAMP:"
	CmdHelp      = "help"
)

// Bridge turns console input into dispatcher events.
type Bridge struct {
	dispatcher *dispatcher.Dispatcher
	version    string
	now        func() time.Time
}

// New creates a bridge over d. version is returned by :VERSION:.
func New(d *dispatcher.Dispatcher, version string) *Bridge {
	if version == "" {
		version = "No version set"
	}
	return &Bridge{dispatcher: d, version: version, now: time.Now}
}

// Execute runs one console line and returns the formatted reply. Blank lines
// reply with an empty string.
func (b *Bridge) Execute(line string) string {
	args := util.SplitArgs(line)
	if len(args) == 0 {
		return ""
	}
	return b.ExecuteArgs(args[0], args[1:])
}

// ExecuteArgs runs a command with pre-split arguments.
func (b *Bridge) ExecuteArgs(command string, args []string) string {
	switch command {
	case CmdVersion:
		return formatDispatchResponse(b.version, nil)
	case CmdTimestamp:
		return formatDispatchResponse(fmt.Sprintf("%d", b.now().UTC().UnixNano()), nil)
	case CmdHelp:
		return formatDispatchResponse(b.dispatcher.Commands(), nil)
	}

	if !b.dispatcher.HasHandler(command) {
		return formatDispatchResponse(nil, fmt.Errorf("%s: no handler registered", command))
	}

	result, err := b.dispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: b.now(),
	})
	return formatDispatchResponse(result, err)
}

// ReadLines reads console lines from r on its own goroutine and delivers them
// on the returned channel until r ends or ctx is done.
func ReadLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// formatDispatchResponse formats a dispatcher result for the console.
func formatDispatchResponse(result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %s]`, quote(err.Error()))
	}
	if result == nil {
		return `["ok"]`
	}
	return fmt.Sprintf(`["ok", %s]`, formatValue(result))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return quote(x)
	case fmt.Stringer:
		return quote(x.String())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return quote(fmt.Sprintf("%v", v))
	}
	return string(data)
}

// quote wraps s in double quotes, doubling any quotes inside.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
