package mir

type InstrKind uint8

const (
	InstrNop InstrKind = iota
	InstrAssign
)

type Instr struct {
	Kind   InstrKind
	Assign AssignInstr
}

type AssignInstr struct {
	Dst Place
	Src Operand
}
