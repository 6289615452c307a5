package mir

type Func struct {
	Name   string
	Locals []Local
	Blocks []Block
	Entry  BlockID
}
