package mir

type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

// Terminated reports whether the block has a terminator. A nil block
// counts as terminated.
func (b *Block) Terminated() bool {
	return b == nil || b.Term.Kind != TermNone
}

// IsTrivialGoto reports whether the block only jumps elsewhere. Nop
// instructions do not count.
func (b *Block) IsTrivialGoto() bool {
	if b.Term.Kind != TermGoto {
		return false
	}
	for i := range b.Instrs {
		if b.Instrs[i].Kind != InstrNop {
			return false
		}
	}
	return true
}
