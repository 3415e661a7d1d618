package formatting

// ColorChar introduces a two-character formatting code, e.g. "§c" for red.
const ColorChar = '§'

const colorCharString = string(ColorChar)

// CSI "Select Graphic Rendition" sequences - https://terminalguide.namepad.de/seq/csi_sm/
const (
	CSI_START  = "\033["
	ANSI_RESET = CSI_START + "m"
)

// Code identifies a single formatting code. The zero value is Black.
type Code uint8

const (
	Black Code = iota
	DarkBlue
	DarkGreen
	DarkAqua
	DarkRed
	DarkPurple
	Gold
	Gray
	DarkGray
	Blue
	Green
	Aqua
	Red
	LightPurple
	Yellow
	White
	Obfuscated
	Bold
	Strikethrough
	Underline
	Italic
	Reset

	numCodes = int(Reset) + 1
)

type codeInfo struct {
	char byte
	name string
	sgr  string
}

// colors carry a leading 0 so they also unset every style
var codes = [numCodes]codeInfo{
	Black:         {'0', "black", CSI_START + "0;30m"},
	DarkBlue:      {'1', "dark_blue", CSI_START + "0;34m"},
	DarkGreen:     {'2', "dark_green", CSI_START + "0;32m"},
	DarkAqua:      {'3', "dark_aqua", CSI_START + "0;36m"},
	DarkRed:       {'4', "dark_red", CSI_START + "0;31m"},
	DarkPurple:    {'5', "dark_purple", CSI_START + "0;35m"},
	Gold:          {'6', "gold", CSI_START + "0;33m"},
	Gray:          {'7', "gray", CSI_START + "0;37m"},
	DarkGray:      {'8', "dark_gray", CSI_START + "0;30;1m"},
	Blue:          {'9', "blue", CSI_START + "0;34;1m"},
	Green:         {'a', "green", CSI_START + "0;32;1m"},
	Aqua:          {'b', "aqua", CSI_START + "0;36;1m"},
	Red:           {'c', "red", CSI_START + "0;31;1m"},
	LightPurple:   {'d', "light_purple", CSI_START + "0;35;1m"},
	Yellow:        {'e', "yellow", CSI_START + "0;33;1m"},
	White:         {'f', "white", CSI_START + "0;37;1m"},
	Obfuscated:    {'k', "obfuscated", CSI_START + "5m"},
	Bold:          {'l', "bold", CSI_START + "21m"},
	Strikethrough: {'m', "strikethrough", CSI_START + "9m"},
	Underline:     {'n', "underline", CSI_START + "4m"},
	Italic:        {'o', "italic", CSI_START + "3m"},
	Reset:         {'r', "reset", ANSI_RESET},
}

// byChar maps a lowercase code character to its Code plus one, so that the zero value means "not a code".
var byChar = func() (table [256]uint8) {
	for code, info := range codes {
		table[info.char] = uint8(code) + 1
	}
	return table
}()

// ParseCode looks up the code for the character following ColorChar. Matching is case-insensitive.
func ParseCode(c byte) (Code, bool) {
	if 'A' <= c && c <= 'Z' {
		c += 'a' - 'A'
	}
	idx := byChar[c]
	if idx == 0 {
		return 0, false
	}
	return Code(idx - 1), true
}

func (c Code) valid() bool { return int(c) < numCodes }

// Char returns the lowercase code character, e.g. 'c' for Red.
func (c Code) Char() byte {
	if !c.valid() {
		return 0
	}
	return codes[c].char
}

// SGR returns the escape sequence that a terminal needs to switch to this code.
func (c Code) SGR() string {
	if !c.valid() {
		return ""
	}
	return codes[c].sgr
}

func (c Code) String() string {
	if !c.valid() {
		return "invalid"
	}
	return codes[c].name
}

func (c Code) IsColor() bool { return c <= White }

func (c Code) IsStyle() bool { return c >= Obfuscated && c <= Italic }

// Format returns the two-character source form of the code, e.g. "§c".
func (c Code) Format() string {
	if !c.valid() {
		return ""
	}
	return colorCharString + string(rune(codes[c].char))
}
