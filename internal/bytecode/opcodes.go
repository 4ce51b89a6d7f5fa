// Package bytecode defines Lattice's compiled artifact: the opcode set
// and the Chunk that holds code, constants, line table and per-chunk
// metadata (§3, §4.1). Grounded on sentra's internal/bytecode/opcodes.go,
// generalized from ~50 teacher opcodes to the full instruction groups
// the phase and concurrency subsystems require.
package bytecode

type OpCode byte

const (
	// --- Literals / stack (§4.1) ---
	OpNil OpCode = iota
	OpTrue
	OpFalse
	OpUnit
	OpConstant     // 8-bit constant index
	OpConstantWide // 16-bit constant index
	OpLoadInt8     // signed 8-bit immediate
	OpPop
	OpDup
	OpSwap

	// --- Arithmetic / comparison ---
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpNot
	OpAnd
	OpOr
	// int-only hot path specializations
	OpAddInt
	OpSubInt
	OpLessInt
	OpIncLocal
	OpDecLocal

	// --- Variables ---
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpGetGlobalWide
	OpSetGlobal
	OpSetGlobalWide
	OpDefineGlobal
	OpDefineGlobalWide
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	// --- Flow ---
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpJumpIfNotNil
	OpLoop

	// --- Calls ---
	OpCall
	OpClosure
	OpReturn
	OpInvoke
	OpInvokeLocal
	OpInvokeGlobal

	// --- Data builders ---
	OpBuildArray
	OpArrayFlatten
	OpBuildMap
	OpBuildTuple
	OpBuildStruct
	OpBuildRange
	OpBuildEnum
	OpBuildSet

	// --- Indexing / fields ---
	OpIndex
	OpSetIndex
	OpSetIndexLocal
	OpGetField
	OpSetField

	// --- Exceptions ---
	OpPushExceptionHandler
	OpPopExceptionHandler
	OpThrow
	OpTryUnwrap

	// --- Defer ---
	OpDeferPush
	OpDeferRun

	// --- Phase ---
	OpFreeze
	OpThaw
	OpClone
	OpMarkFluid
	OpSublimate
	OpFreezeVar
	OpThawVar
	OpSublimateVar

	// --- Reactivity ---
	OpReact
	OpUnreact
	OpBond
	OpUnbond
	OpSeed
	OpUnseed
	OpTrack
	OpPressurize
	OpDepressurize
	OpGrow

	// --- Concurrency ---
	OpScope
	OpSelect
	OpChannelNew
	OpChannelSend
	OpChannelRecv

	// --- Import / print ---
	OpPrint
	OpImport
	OpRequire

	// --- Terminators ---
	OpHalt
)

var opNames = map[OpCode]string{
	OpNil: "NIL", OpTrue: "TRUE", OpFalse: "FALSE", OpUnit: "UNIT",
	OpConstant: "CONSTANT", OpConstantWide: "CONSTANT_WIDE", OpLoadInt8: "LOAD_INT8",
	OpPop: "POP", OpDup: "DUP", OpSwap: "SWAP",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpNegate: "NEGATE",
	OpEqual: "EQUAL", OpNotEqual: "NOT_EQUAL", OpLess: "LESS", OpGreater: "GREATER",
	OpLessEqual: "LESS_EQUAL", OpGreaterEqual: "GREATER_EQUAL", OpNot: "NOT", OpAnd: "AND", OpOr: "OR",
	OpAddInt: "ADD_INT", OpSubInt: "SUB_INT", OpLessInt: "LESS_INT",
	OpIncLocal: "INC_LOCAL", OpDecLocal: "DEC_LOCAL",
	OpGetLocal: "GET_LOCAL", OpSetLocal: "SET_LOCAL",
	OpGetGlobal: "GET_GLOBAL", OpGetGlobalWide: "GET_GLOBAL_WIDE",
	OpSetGlobal: "SET_GLOBAL", OpSetGlobalWide: "SET_GLOBAL_WIDE",
	OpDefineGlobal: "DEFINE_GLOBAL", OpDefineGlobalWide: "DEFINE_GLOBAL_WIDE",
	OpGetUpvalue: "GET_UPVALUE", OpSetUpvalue: "SET_UPVALUE", OpCloseUpvalue: "CLOSE_UPVALUE",
	OpJump: "JUMP", OpJumpIfFalse: "JUMP_IF_FALSE", OpJumpIfTrue: "JUMP_IF_TRUE",
	OpJumpIfNotNil: "JUMP_IF_NOT_NIL", OpLoop: "LOOP",
	OpCall: "CALL", OpClosure: "CLOSURE", OpReturn: "RETURN",
	OpInvoke: "INVOKE", OpInvokeLocal: "INVOKE_LOCAL", OpInvokeGlobal: "INVOKE_GLOBAL",
	OpBuildArray: "BUILD_ARRAY", OpArrayFlatten: "ARRAY_FLATTEN", OpBuildMap: "BUILD_MAP",
	OpBuildTuple: "BUILD_TUPLE", OpBuildStruct: "BUILD_STRUCT", OpBuildRange: "BUILD_RANGE",
	OpBuildEnum: "BUILD_ENUM", OpBuildSet: "BUILD_SET",
	OpIndex: "INDEX", OpSetIndex: "SET_INDEX", OpSetIndexLocal: "SET_INDEX_LOCAL",
	OpGetField: "GET_FIELD", OpSetField: "SET_FIELD",
	OpPushExceptionHandler: "PUSH_EXCEPTION_HANDLER", OpPopExceptionHandler: "POP_EXCEPTION_HANDLER",
	OpThrow: "THROW", OpTryUnwrap: "TRY_UNWRAP",
	OpDeferPush: "DEFER_PUSH", OpDeferRun: "DEFER_RUN",
	OpFreeze: "FREEZE", OpThaw: "THAW", OpClone: "CLONE", OpMarkFluid: "MARK_FLUID", OpSublimate: "SUBLIMATE",
	OpFreezeVar: "FREEZE_VAR", OpThawVar: "THAW_VAR", OpSublimateVar: "SUBLIMATE_VAR",
	OpReact: "REACT", OpUnreact: "UNREACT", OpBond: "BOND", OpUnbond: "UNBOND",
	OpSeed: "SEED", OpUnseed: "UNSEED", OpTrack: "TRACK",
	OpPressurize: "PRESSURIZE", OpDepressurize: "DEPRESSURIZE", OpGrow: "GROW",
	OpScope: "SCOPE", OpSelect: "SELECT", OpChannelNew: "CHANNEL_NEW",
	OpChannelSend: "CHANNEL_SEND", OpChannelRecv: "CHANNEL_RECV",
	OpPrint: "PRINT", OpImport: "IMPORT", OpRequire: "REQUIRE",
	OpHalt: "HALT",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// LocationKind distinguishes where a phase opcode's named-variable form
// (freeze_var/thaw_var/sublimate_var) should write its result back to.
type LocationKind byte

const (
	LocLocal LocationKind = iota
	LocUpvalue
	LocGlobal
)

// SelectFlag bits for a single select arm, packed into the byte
// following each arm's channel/body/binding indices (§4.1).
type SelectFlag byte

const (
	SelectDefault SelectFlag = 1 << iota
	SelectTimeout
	SelectHasBinding
)

// BondStrategy names the cascade rule a bond applies when its target
// freezes (§4.6).
type BondStrategy byte

const (
	BondMirror BondStrategy = iota
	BondInverse
	BondGate
)

func (s BondStrategy) String() string {
	switch s {
	case BondMirror:
		return "mirror"
	case BondInverse:
		return "inverse"
	case BondGate:
		return "gate"
	default:
		return "?"
	}
}
