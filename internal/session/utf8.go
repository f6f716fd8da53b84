package session

import "unicode/utf8"

// runeCarry holds back a multibyte UTF-8 sequence split across PTY reads so
// every forwarded chunk is valid text on its own.
type runeCarry struct {
	tail []byte
}

// take prepends any held bytes to b and returns the complete prefix,
// keeping an unfinished trailing sequence for the next call.
func (c *runeCarry) take(b []byte) []byte {
	if len(c.tail) > 0 {
		b = append(c.tail, b...)
		c.tail = nil
	}

	// A rune is at most utf8.UTFMax bytes, so only the last few can be a
	// partial sequence.
	for i := len(b) - 1; i >= 0 && i > len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			c.tail = append([]byte(nil), b[i:]...)
			return b[:i]
		}
		break
	}
	return b
}

// flush returns whatever is still held.
func (c *runeCarry) flush() []byte {
	tail := c.tail
	c.tail = nil
	return tail
}
