package pitui

import (
	"encoding/hex"

	uv "github.com/charmbracelet/ultraviolet"
)

// Key names accepted by Matches, in ultraviolet's keystroke notation.
const (
	KeyUp     = "up"
	KeyDown   = "down"
	KeyLeft   = "left"
	KeyRight  = "right"
	KeyHome   = "home"
	KeyEnd    = "end"
	KeyPgUp   = "pgup"
	KeyPgDown = "pgdown"
	KeySpace  = "space"
	KeyF2     = "f2"
	KeyCtrlC  = "ctrl+c"
)

// Matches reports whether key is any of the named keys.
func Matches(key uv.Key, names ...string) bool {
	return key.MatchString(names...)
}

// KeyName returns a short printable name for key.
func KeyName(key uv.Key) string {
	return key.String()
}

// HexBytes formats raw input for display, e.g. "1b5b41".
func HexBytes(raw []byte) string {
	return hex.EncodeToString(raw)
}
