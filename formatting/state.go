package formatting

// State is the color and the set of styles that are active at some point of a formatted string.
//
// A color code clears all previously active styles, the reset code clears everything and style codes accumulate
// on top of the current color.
type State struct {
	color    Code
	hasColor bool
	styles   uint8
}

func styleBit(c Code) uint8 { return 1 << (c - Obfuscated) }

// Apply advances the state past a single code.
func (s *State) Apply(c Code) {
	switch {
	case c == Reset:
		*s = State{}
	case c.IsColor():
		s.color = c
		s.hasColor = true
		s.styles = 0
	case c.IsStyle():
		s.styles |= styleBit(c)
	}
}

// IsDefault reports whether the terminal would render text following this state with its default attributes.
func (s State) IsDefault() bool {
	return !s.hasColor && s.styles == 0
}

func (s State) Color() (Code, bool) {
	return s.color, s.hasColor
}

func (s State) HasStyle(style Code) bool {
	return style.IsStyle() && s.styles&styleBit(style) != 0
}

// Styles returns the active styles in table order.
func (s State) Styles() (styles []Code) {
	for c := Obfuscated; c <= Italic; c++ {
		if s.HasStyle(c) {
			styles = append(styles, c)
		}
	}
	return styles
}
