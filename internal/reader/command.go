package reader

import (
	"strings"

	"github.com/yourusername/scroll-forge/internal/viewer"
)

// CommandName は対話コマンドの種類です。
type CommandName int

const (
	CommandUnknown CommandName = iota
	CommandKey
	CommandZoomIn
	CommandZoomOut
	CommandZoomReset
	CommandJump
	CommandReload
	CommandHelp
	CommandQuit
)

// Command は1行の入力を解釈した結果です。
type Command struct {
	Name CommandName
	// Key は CommandKey のときのキー入力です。
	Key viewer.KeyEvent
	// Arg は CommandJump の入力値、CommandUnknown の元の入力です。
	Arg string
}

const helpText = `n, right, down  next page      p, left, up  previous page
home, end       first / last   g N          go to page N
+, -, 0         zoom in / out / reset       f  toggle fullscreen
r               reload page    q            quit`

var keyCommands = map[string]viewer.KeyEvent{
	"":      {Key: viewer.KeyArrowRight},
	"n":     {Key: viewer.KeyArrowRight},
	"next":  {Key: viewer.KeyArrowRight},
	"right": {Key: viewer.KeyArrowRight},
	"down":  {Key: viewer.KeyArrowDown},
	"p":     {Key: viewer.KeyArrowLeft},
	"prev":  {Key: viewer.KeyArrowLeft},
	"left":  {Key: viewer.KeyArrowLeft},
	"up":    {Key: viewer.KeyArrowUp},
	"home":  {Key: viewer.KeyHome},
	"end":   {Key: viewer.KeyEnd},
	"f":     {Key: "f", Ctrl: true},
}

// ParseCommand は入力行を解釈します。空行は次のページです。
func ParseCommand(line string) Command {
	fields := strings.Fields(strings.ToLower(line))
	name, arg := "", ""
	if len(fields) > 0 {
		name = fields[0]
	}
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	if key, ok := keyCommands[name]; ok && arg == "" {
		return Command{Name: CommandKey, Key: key}
	}
	switch name {
	case "+", "=":
		return Command{Name: CommandZoomIn}
	case "-":
		return Command{Name: CommandZoomOut}
	case "0":
		return Command{Name: CommandZoomReset}
	case "g", "go", "goto":
		return Command{Name: CommandJump, Arg: arg}
	case "r", "reload":
		return Command{Name: CommandReload}
	case "?", "h", "help":
		return Command{Name: CommandHelp}
	case "q", "quit", "exit":
		return Command{Name: CommandQuit}
	}
	return Command{Name: CommandUnknown, Arg: strings.TrimSpace(line)}
}
