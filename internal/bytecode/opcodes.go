package bytecode

type OpCode byte

const (
	OpConstant OpCode = iota // u16 constant index
	OpInt                    // i16 immediate
	OpNone
	OpTrue
	OpFalse
	OpPop
	OpDup

	OpGetLocal  // u8 slot
	OpSetLocal  // u8 slot, pops
	OpGetGlobal // u16 name constant
	OpSetGlobal // u16 name constant, pops

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNegate
	OpNot
	OpAnd
	OpOr
	OpShlInt // u8 shift; guarded int multiply by a power of two

	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	OpJump        // u16 forward
	OpJumpIfFalse // u16 forward, pops the condition
	OpLoop        // u16 backward

	OpCall // u8 argc
	OpReturn

	OpBuildList // u16 element count
	OpIndex
	OpSetIndex

	OpIterInit
	OpIterNext // u16 forward exit
	OpIterEnd
	OpRepeatInit

	OpTry // u16 forward catch target
	OpCatch
	OpThrow

	OpSay
	OpAsk // u8 argc
	OpLen
	OpRange // u8 argc
	OpType
	OpToInt
	OpToFloat
	OpToStr
	OpAppend
	OpArityError // u8 builtin, u8 argc

	OpSpawn
	OpJoin
	OpChanSend
	OpChanRecv
	OpAtomicAdd

	opCount
)

// Operand encodings.
const (
	OperandNone = iota
	OperandU8
	OperandU16
	OperandI16
	OperandU8U8
)

type opInfo struct {
	name    string
	operand int
}

var opTable = [opCount]opInfo{
	OpConstant:     {"CONSTANT", OperandU16},
	OpInt:          {"INT", OperandI16},
	OpNone:         {"NONE", OperandNone},
	OpTrue:         {"TRUE", OperandNone},
	OpFalse:        {"FALSE", OperandNone},
	OpPop:          {"POP", OperandNone},
	OpDup:          {"DUP", OperandNone},
	OpGetLocal:     {"GET_LOCAL", OperandU8},
	OpSetLocal:     {"SET_LOCAL", OperandU8},
	OpGetGlobal:    {"GET_GLOBAL", OperandU16},
	OpSetGlobal:    {"SET_GLOBAL", OperandU16},
	OpAdd:          {"ADD", OperandNone},
	OpSub:          {"SUB", OperandNone},
	OpMul:          {"MUL", OperandNone},
	OpDiv:          {"DIV", OperandNone},
	OpMod:          {"MOD", OperandNone},
	OpPow:          {"POW", OperandNone},
	OpNegate:       {"NEGATE", OperandNone},
	OpNot:          {"NOT", OperandNone},
	OpAnd:          {"AND", OperandNone},
	OpOr:           {"OR", OperandNone},
	OpShlInt:       {"SHL_INT", OperandU8},
	OpEqual:        {"EQUAL", OperandNone},
	OpNotEqual:     {"NOT_EQUAL", OperandNone},
	OpLess:         {"LESS", OperandNone},
	OpLessEqual:    {"LESS_EQUAL", OperandNone},
	OpGreater:      {"GREATER", OperandNone},
	OpGreaterEqual: {"GREATER_EQUAL", OperandNone},
	OpJump:         {"JUMP", OperandU16},
	OpJumpIfFalse:  {"JUMP_IF_FALSE", OperandU16},
	OpLoop:         {"LOOP", OperandU16},
	OpCall:         {"CALL", OperandU8},
	OpReturn:       {"RETURN", OperandNone},
	OpBuildList:    {"BUILD_LIST", OperandU16},
	OpIndex:        {"INDEX", OperandNone},
	OpSetIndex:     {"SET_INDEX", OperandNone},
	OpIterInit:     {"ITER_INIT", OperandNone},
	OpIterNext:     {"ITER_NEXT", OperandU16},
	OpIterEnd:      {"ITER_END", OperandNone},
	OpRepeatInit:   {"REPEAT_INIT", OperandNone},
	OpTry:          {"TRY", OperandU16},
	OpCatch:        {"CATCH", OperandNone},
	OpThrow:        {"THROW", OperandNone},
	OpSay:          {"SAY", OperandNone},
	OpAsk:          {"ASK", OperandU8},
	OpLen:          {"LEN", OperandNone},
	OpRange:        {"RANGE", OperandU8},
	OpType:         {"TYPE", OperandNone},
	OpToInt:        {"TO_INT", OperandNone},
	OpToFloat:      {"TO_FLOAT", OperandNone},
	OpToStr:        {"TO_STR", OperandNone},
	OpAppend:       {"APPEND", OperandNone},
	OpArityError:   {"ARITY_ERROR", OperandU8U8},
	OpSpawn:        {"SPAWN", OperandNone},
	OpJoin:         {"JOIN", OperandNone},
	OpChanSend:     {"CHAN_SEND", OperandNone},
	OpChanRecv:     {"CHAN_RECV", OperandNone},
	OpAtomicAdd:    {"ATOMIC_ADD", OperandNone},
}

func (op OpCode) String() string {
	if op < opCount {
		return opTable[op].name
	}
	return "UNKNOWN"
}

// Valid reports whether op is a defined opcode.
func (op OpCode) Valid() bool { return op < opCount }

// OperandKind returns the operand encoding of op.
func (op OpCode) OperandKind() int {
	if op < opCount {
		return opTable[op].operand
	}
	return OperandNone
}

// Size is the encoded length of op including operands.
func (op OpCode) Size() int {
	switch op.OperandKind() {
	case OperandU8:
		return 2
	case OperandU16, OperandI16, OperandU8U8:
		return 3
	}
	return 1
}

// IsJump reports whether op carries a relative jump offset.
func (op OpCode) IsJump() bool {
	switch op {
	case OpJump, OpJumpIfFalse, OpLoop, OpIterNext, OpTry:
		return true
	}
	return false
}

// Builtin identifiers used by OpArityError.
const (
	BuiltinSay = iota
	BuiltinAsk
	BuiltinLen
	BuiltinRange
	BuiltinType
	BuiltinInt
	BuiltinFloat
	BuiltinStr
	BuiltinAppend
)

var BuiltinNames = [...]string{
	BuiltinSay:    "say",
	BuiltinAsk:    "ask",
	BuiltinLen:    "len",
	BuiltinRange:  "range",
	BuiltinType:   "type",
	BuiltinInt:    "int",
	BuiltinFloat:  "float",
	BuiltinStr:    "str",
	BuiltinAppend: "append",
}
