package prompt

import (
	"github.com/danielgatis/go-vte"
	"github.com/mattn/go-runewidth"
)

const tabWidth = 8

// cellCounter counts the terminal cells printed text occupies. Escape sequences don't take up any room.
type cellCounter struct {
	cells int
}

// Draw a character to the screen
func (c *cellCounter) Print(r rune) {
	c.cells += runewidth.RuneWidth(r)
}

// Execute a C0 or C1 control function
func (c *cellCounter) Execute(b byte) {
	if b == '\t' {
		c.cells += tabWidth - c.cells%tabWidth
	}
}

func (c *cellCounter) Put(b byte) {}

func (c *cellCounter) Unhook() {}

func (c *cellCounter) Hook(params [][]uint16, intermediates []byte, ignore bool, final rune) {}

func (c *cellCounter) OscDispatch(params [][]byte, bellTerminated bool) {}

func (c *cellCounter) CsiDispatch(params [][]uint16, intermediates []byte, ignore bool, final rune) {}

func (c *cellCounter) EscDispatch(intermediates []byte, ignore bool, final byte) {}

func (c *cellCounter) SosPmApcDispatch(kind byte, data []byte, bellTerminated bool) {}

// visibleWidth returns how many cells s takes up when printed on a single line.
func visibleWidth(s string) int {
	counter := &cellCounter{}
	parser := vte.NewParser(counter)
	for i := 0; i < len(s); i++ {
		parser.Advance(s[i])
	}
	return counter.cells
}
