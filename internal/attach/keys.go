package attach

// Control bytes the client handles itself instead of sending to the shell.
const (
	KeyUndo      = 0x1f // Ctrl-_
	KeyRedo      = 0x1e // Ctrl-^
	KeyClearLine = 0x18 // Ctrl-X
)

type actionKind int

const (
	actionInput actionKind = iota
	actionUndo
	actionRedo
	actionClearLine
)

type action struct {
	kind actionKind
	data string
}

// parseInput splits a chunk read from the terminal into keystrokes for the
// shell and client bindings, preserving order.
func parseInput(chunk []byte) []action {
	var actions []action
	start := 0
	flush := func(end int) {
		if end > start {
			actions = append(actions, action{kind: actionInput, data: string(chunk[start:end])})
		}
	}
	for i, b := range chunk {
		var kind actionKind
		switch b {
		case KeyUndo:
			kind = actionUndo
		case KeyRedo:
			kind = actionRedo
		case KeyClearLine:
			kind = actionClearLine
		default:
			continue
		}
		flush(i)
		actions = append(actions, action{kind: kind})
		start = i + 1
	}
	flush(len(chunk))
	return actions
}
