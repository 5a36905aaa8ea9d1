package protocol

import "fmt"

// Opcode is a single command identifier in the CCU command vocabulary.
// Discovery only ever sends OpIdentify; the rest are listed so that tooling
// can name the bytes it sees on the wire.
type Opcode uint8

// CCU UDP opcodes. The numeric value is what travels on the wire, rendered
// as decimal text.
const (
	OpIdentify                         Opcode = 73
	OpGetConfig                        Opcode = 99
	OpSetConfig                        Opcode = 67
	OpGetNetworkAddress                Opcode = 110
	OpReboot                           Opcode = 82
	OpEnterBootloader                  Opcode = 66
	OpEnterApplication                 Opcode = 65
	OpInitUpdate                       Opcode = 85
	OpWriteUpdate                      Opcode = 87
	OpGetTestStatus                    Opcode = 116
	OpSetTestStatus                    Opcode = 84
	OpCrypt                            Opcode = 42
	OpFactoryReset                     Opcode = 70
	OpInitKeyExchange                  Opcode = 75
	OpKeyExchange                      Opcode = 69
	OpProductionTest                   Opcode = 80
	OpGetDeviceSpecificConfigStructure Opcode = 115
	OpGetDeviceSpecificConfig          Opcode = 100
	OpSetDeviceSpecificConfig          Opcode = 68
)

var opcodeNames = map[Opcode]string{
	OpIdentify:                         "Identify",
	OpGetConfig:                        "GetConfig",
	OpSetConfig:                        "SetConfig",
	OpGetNetworkAddress:                "GetNetworkAddress",
	OpReboot:                           "Reboot",
	OpEnterBootloader:                  "EnterBootloader",
	OpEnterApplication:                 "EnterApplication",
	OpInitUpdate:                       "InitUpdate",
	OpWriteUpdate:                      "WriteUpdate",
	OpGetTestStatus:                    "GetTestStatus",
	OpSetTestStatus:                    "SetTestStatus",
	OpCrypt:                            "Crypt",
	OpFactoryReset:                     "FactoryReset",
	OpInitKeyExchange:                  "InitKeyExchange",
	OpKeyExchange:                      "KeyExchange",
	OpProductionTest:                   "ProductionTest",
	OpGetDeviceSpecificConfigStructure: "GetDeviceSpecificConfigStructure",
	OpGetDeviceSpecificConfig:          "GetDeviceSpecificConfig",
	OpSetDeviceSpecificConfig:          "SetDeviceSpecificConfig",
}

// String returns the command name, or "Opcode(n)" for values outside the
// vocabulary.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// Known reports whether o is part of the CCU vocabulary.
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

// ParseOpcode looks an opcode up by its command name (case-sensitive).
func ParseOpcode(name string) (Opcode, error) {
	for op, n := range opcodeNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown opcode name: %q", name)
}

// Opcodes returns the full vocabulary ordered by wire value.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeNames))
	for v := 0; v <= 255; v++ {
		if op := Opcode(v); op.Known() {
			ops = append(ops, op)
		}
	}
	return ops
}
