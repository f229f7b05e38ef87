package rio

import (
	"fmt"
	"strconv"
	"strings"
)

// IrqSet is a selection of the 32 interrupt lines of a target.
type IrqSet uint32

const (
	IRQ0 IrqSet = 1 << iota
	IRQ1
	IRQ2
	IRQ3
	IRQ4
	IRQ5
	IRQ6
	IRQ7
	IRQ8
	IRQ9
	IRQ10
	IRQ11
	IRQ12
	IRQ13
	IRQ14
	IRQ15
	IRQ16
	IRQ17
	IRQ18
	IRQ19
	IRQ20
	IRQ21
	IRQ22
	IRQ23
	IRQ24
	IRQ25
	IRQ26
	IRQ27
	IRQ28
	IRQ29
	IRQ30
	IRQ31
)

// Irqs returns a set containing the given line numbers. Numbers above 31 are
// ignored.
func Irqs(lines ...uint8) IrqSet {
	var s IrqSet
	for _, n := range lines {
		s = s.Add(n)
	}
	return s
}

// Add returns s with line n included.
func (s IrqSet) Add(n uint8) IrqSet {
	if n > 31 {
		return s
	}
	return s | 1<<n
}

// Has reports whether line n is in s.
func (s IrqSet) Has(n uint8) bool {
	return n <= 31 && s&(1<<n) != 0
}

// Lines returns the line numbers in s in ascending order.
func (s IrqSet) Lines() []uint8 {
	var lines []uint8
	for n := uint8(0); n < 32; n++ {
		if s.Has(n) {
			lines = append(lines, n)
		}
	}
	return lines
}

// String renders the set as "IrqSet[0, 2]".
func (s IrqSet) String() string {
	var sb strings.Builder
	sb.WriteString("IrqSet[")
	for i, n := range s.Lines() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(n)))
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseIrqSet parses a comma separated list of line numbers such as "0,2,5".
func ParseIrqSet(text string) (IrqSet, error) {
	var s IrqSet
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil || n > 31 {
			return 0, fmt.Errorf("rio: invalid irq line %q", part)
		}
		s = s.Add(uint8(n))
	}
	return s, nil
}
