package flow

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint32
		want   Transfer
		ok     bool
	}{
		{"call", 0xCD, Transfer{TransferCall, 3, false}, true},
		{"call-nz", 0xC4, Transfer{TransferCall, 3, true}, true},
		{"ret", 0xC9, Transfer{TransferReturn, 1, false}, true},
		{"ret-c", 0xD8, Transfer{TransferReturn, 1, true}, true},
		{"jp", 0xC3, Transfer{TransferJump, 3, false}, true},
		{"jp-z", 0xCA, Transfer{TransferJump, 3, true}, true},
		{"jr", 0x18, Transfer{TransferJumpRelative, 2, false}, true},
		{"jr-nc", 0x30, Transfer{TransferJumpRelative, 2, true}, true},
		{"jp-hl", 0xE9, Transfer{TransferJumpIndirect, 1, false}, true},
		{"djnz", 0x10, Transfer{TransferDecJump, 2, true}, true},
		{"rst-38", 0xFF, Transfer{TransferRestart, 1, false}, true},
		{"nop", 0x00, Transfer{}, false},
		{"ld-a-hl", 0x7E, Transfer{}, false},
		{"push-hl", 0xE5, Transfer{}, false},

		// Index prefix adds one byte to the length.
		{"jp-ix", 0xE9DD, Transfer{TransferJumpIndirect, 2, false}, true},
		{"jp-iy", 0xE9FD, Transfer{TransferJumpIndirect, 2, false}, true},
		{"prefixed-load", 0x7EDD, Transfer{}, false},

		// Bit operations never branch, prefixed or not.
		{"cb", 0x10CB, Transfer{}, false},
		{"ddcb", 0xCBDD, Transfer{}, false},

		// ED page: only the RETN/RETI family.
		{"retn", 0x45ED, Transfer{TransferReturn, 2, false}, true},
		{"reti", 0x4DED, Transfer{TransferReturn, 2, false}, true},
		{"retn-clone", 0x75ED, Transfer{TransferReturn, 2, false}, true},
		{"ldir", 0xB0ED, Transfer{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Classify(tc.opcode)
			if ok != tc.ok {
				t.Fatalf("Classify(%#x) ok = %v, want %v", tc.opcode, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("Classify(%#x) = %+v, want %+v", tc.opcode, got, tc.want)
			}
		})
	}
}
