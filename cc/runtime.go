package cc

import "github.com/halcyon6303/orgtool/machine"

// runtimeIntrinsics is the small set of console I/O helpers user
// programs call without an `external` declaration. They share the same SWI trap dispatch as
// user-declared external procedures, just with fixed,
// pre-assigned selector numbers matching machine.Services.
// machineTrapInitSelector is the one-shot setup trap main issues before
// its first service call.
const machineTrapInitSelector = machine.SelectorTrapInit

var runtimeIntrinsics = map[string]runtimeIntrinsic{
	"putchar":   {Ret: VoidType, Selector: machine.SelectorPutchar},
	"print_int": {Ret: VoidType, Selector: machine.SelectorPrintInt},
	"gets":      {Ret: IntType, Selector: machine.SelectorGets},
	"keyscan":   {Ret: CharType, Selector: machine.SelectorKeyScan},
}
