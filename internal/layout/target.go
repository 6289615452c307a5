package layout

import "fmt"

// Endian is the byte order of a target.
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrSize  int    // bytes
	PtrAlign int    // bytes
	Endian   Endian
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:   "x86_64-linux-gnu",
		PtrSize:  8,
		PtrAlign: 8,
	}
}

func I686LinuxGNU() Target {
	return Target{
		Triple:   "i686-linux-gnu",
		PtrSize:  4,
		PtrAlign: 4,
	}
}

func Aarch64LinuxGNU() Target {
	return Target{
		Triple:   "aarch64-linux-gnu",
		PtrSize:  8,
		PtrAlign: 8,
	}
}

func PowerPCLinuxGNU() Target {
	return Target{
		Triple:   "powerpc-linux-gnu",
		PtrSize:  4,
		PtrAlign: 4,
		Endian:   BigEndian,
	}
}

// TargetFromTriple returns the built-in target for a triple.
func TargetFromTriple(triple string) (Target, error) {
	for _, t := range []Target{X86_64LinuxGNU(), I686LinuxGNU(), Aarch64LinuxGNU(), PowerPCLinuxGNU()} {
		if t.Triple == triple {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown target %q", triple)
}
