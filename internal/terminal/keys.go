package terminal

// Key is a symbolic keystroke deliverable to a session.
type Key string

// Symbolic keys understood by SendKey.
const (
	KeyEnter     Key = "Enter"
	KeyEscape    Key = "Escape"
	KeyCtrlC     Key = "C-c"
	KeyCtrlU     Key = "C-u"
	KeyBackspace Key = "BSpace"
	KeyUp        Key = "Up"
	KeyDown      Key = "Down"
	KeyLeft      Key = "Left"
	KeyRight     Key = "Right"
)

// keySequences maps symbolic keys to the bytes written to the PTY.
var keySequences = map[Key][]byte{
	KeyEnter:     []byte("\r"),
	KeyEscape:    []byte("\x1b"),
	KeyCtrlC:     []byte("\x03"),
	KeyCtrlU:     []byte("\x15"),
	KeyBackspace: []byte("\x7f"),
	KeyUp:        []byte("\x1b[A"),
	KeyDown:      []byte("\x1b[B"),
	KeyLeft:      []byte("\x1b[D"),
	KeyRight:     []byte("\x1b[C"),
}

// ParseKey resolves a user-supplied key name to a Key, accepting a few
// common aliases.
func ParseKey(name string) (Key, bool) {
	switch name {
	case "Enter", "enter", "CR":
		return KeyEnter, true
	case "Escape", "escape", "Esc", "esc":
		return KeyEscape, true
	case "C-c", "ctrl-c", "Ctrl-C":
		return KeyCtrlC, true
	case "C-u", "ctrl-u", "Ctrl-U":
		return KeyCtrlU, true
	case "Up", "up":
		return KeyUp, true
	case "Down", "down":
		return KeyDown, true
	case "Left", "left":
		return KeyLeft, true
	case "Right", "right":
		return KeyRight, true
	}
	return "", false
}
