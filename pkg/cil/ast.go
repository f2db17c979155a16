// Package cil defines an intermediate representation for ISO C programs:
// a typed abstract syntax tree with identity-shared composite, enum and
// variable descriptors, together with constructors and a rewriting visitor.
// Side effects live only in instructions; expressions are effect free.
package cil

import "hash/fnv"

// MissingFieldName is the sentinel used for unnamed bitfield members.
const MissingFieldName = "___missing_field_name"

// Location identifies a position in a source file.
type Location struct {
	File string
	Line int
}

// NoLoc is the unknown location.
var NoLoc = Location{}

// IKind enumerates the C integer kinds.
type IKind int

const (
	IChar IKind = iota // plain char, signedness is target defined
	ISChar
	IUChar
	IInt
	IUInt
	IShort
	IUShort
	ILong
	IULong
	ILongLong
	IULongLong
)

func (k IKind) String() string {
	names := []string{
		"char", "signed char", "unsigned char",
		"int", "unsigned int", "short", "unsigned short",
		"long", "unsigned long", "long long", "unsigned long long",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// IsUnsigned reports whether the kind is an unsigned kind. Plain char is
// not considered unsigned here; consult the target for its signedness.
func (k IKind) IsUnsigned() bool {
	switch k {
	case IUChar, IUInt, IUShort, IULong, IULongLong:
		return true
	}
	return false
}

// FKind enumerates the C floating-point kinds.
type FKind int

const (
	FFloat FKind = iota
	FDouble
	FLongDouble
)

func (k FKind) String() string {
	names := []string{"float", "double", "long double"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Storage is a C storage class.
type Storage int

const (
	NoStorage Storage = iota
	Static
	Register
	Extern
)

func (s Storage) String() string {
	names := []string{"", "static", "register", "extern"}
	if int(s) < len(names) {
		return names[s]
	}
	return "?"
}

// UOp enumerates unary operators.
type UOp int

const (
	Neg  UOp = iota // arithmetic negation
	BNot            // bitwise complement
	LNot            // logical negation
)

func (op UOp) String() string {
	names := []string{"-", "~", "!"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// BOp enumerates binary operators. Pointer arithmetic and pointer
// comparisons are distinguished from their integer counterparts; the
// distinction drives both constant folding and printing.
type BOp int

const (
	PlusA   BOp = iota // arithmetic +
	PlusPI             // pointer + integer
	IndexPI            // pointer + integer, known to come from an index
	MinusA             // arithmetic -
	MinusPI            // pointer - integer
	MinusPP            // pointer - pointer
	Mult
	Div
	Mod
	Shiftlt
	Shiftrt
	Lt
	Gt
	Le
	Ge
	Eq
	Ne
	LtP // pointer comparisons
	GtP
	LeP
	GeP
	EqP
	NeP
	BAnd
	BXor
	BOr
)

func (op BOp) String() string {
	names := []string{
		"+", "+", "+", "-", "-", "-",
		"*", "/", "%", "<<", ">>",
		"<", ">", "<=", ">=", "==", "!=",
		"<", ">", "<=", ">=", "==", "!=",
		"&", "^", "|",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// --- Attributes ---

// Attribute is a named attribute with parameters. Attribute lists are
// kept sorted by name at all times; see AddAttribute.
type Attribute struct {
	Name   string
	Params []AttrParam
}

// AttrParam is the expression sub-language allowed in attribute
// parameters.
type AttrParam interface {
	implAttrParam()
}

// AInt is an integer attribute parameter.
type AInt struct {
	N int64
}

// AStr is a string attribute parameter.
type AStr struct {
	S string
}

// AVar is a reference to a variable from an attribute parameter.
type AVar struct {
	Vi *VarInfo
}

// ACons is a constructed parameter: a name applied to parameters.
// With no parameters it doubles as a bare identifier.
type ACons struct {
	Name   string
	Params []AttrParam
}

// ASizeOf is sizeof a type inside an attribute.
type ASizeOf struct {
	T Type
}

// ASizeOfE is sizeof another attribute parameter.
type ASizeOfE struct {
	P AttrParam
}

// AUnOp applies a unary operator to a parameter.
type AUnOp struct {
	Op UOp
	P  AttrParam
}

// ABinOp applies a binary operator to two parameters.
type ABinOp struct {
	Op   BOp
	L, R AttrParam
}

func (*AInt) implAttrParam()    {}
func (*AStr) implAttrParam()    {}
func (*AVar) implAttrParam()    {}
func (*ACons) implAttrParam()   {}
func (*ASizeOf) implAttrParam() {}
func (*ASizeOfE) implAttrParam() {}
func (*AUnOp) implAttrParam()   {}
func (*ABinOp) implAttrParam()  {}

// --- Types ---

// Type is the interface for C types. Every type constructor carries an
// attribute list.
type Type interface {
	implType()
}

// TVoid is the void type.
type TVoid struct {
	A []Attribute
}

// TInt is an integer type.
type TInt struct {
	Kind IKind
	A    []Attribute
}

// TFloat is a floating-point type.
type TFloat struct {
	Kind FKind
	A    []Attribute
}

// TPtr is a pointer type.
type TPtr struct {
	Elem Type
	A    []Attribute
}

// TArray is an array type. Len is nil for arrays of unspecified length.
type TArray struct {
	Elem Type
	Len  Exp
	A    []Attribute
}

// TFun is a function type. Params is nil when the function has no
// prototype; a non-nil empty list means (void). When the type belongs to
// a function definition, Params is the very same slice as the fundec's
// Sformals; SetFormals maintains that identity.
type TFun struct {
	Ret    Type
	Params []*VarInfo
	VarArg bool
	A      []Attribute
}

// TNamed is a reference to a typedef, carrying the underlying type.
type TNamed struct {
	Name string
	Typ  Type
	A    []Attribute
}

// TComp is a reference to a struct or union. The CompInfo is shared by
// identity with the GCompTag that defines it.
type TComp struct {
	Ci *CompInfo
	A  []Attribute
}

// TEnum is a reference to an enumeration, shared by identity with its
// GEnumTag.
type TEnum struct {
	Ei *EnumInfo
	A  []Attribute
}

// TBuiltinVaList is the target's __builtin_va_list type.
type TBuiltinVaList struct {
	A []Attribute
}

func (*TVoid) implType()          {}
func (*TInt) implType()           {}
func (*TFloat) implType()         {}
func (*TPtr) implType()           {}
func (*TArray) implType()         {}
func (*TFun) implType()           {}
func (*TNamed) implType()         {}
func (*TComp) implType()          {}
func (*TEnum) implType()          {}
func (*TBuiltinVaList) implType() {}

// --- Shared descriptors ---

// CompInfo describes a struct or union. There is exactly one CompInfo per
// composite; every TComp that uses it references it by identity.
type CompInfo struct {
	IsStruct   bool
	Name       string // never empty, anonymous composites get synthetic names
	Key        int    // hash of "struct <name>" or "union <name>"
	Fields     []*FieldInfo
	Attrs      []Attribute
	Referenced bool
}

// SetName renames the composite and recomputes its key.
func (ci *CompInfo) SetName(name string) {
	ci.Name = name
	ci.Key = compKey(ci.IsStruct, name)
}

func compKey(isStruct bool, name string) int {
	kw := "union "
	if isStruct {
		kw = "struct "
	}
	return hashName(kw + name)
}

// hashName hashes a name into a non-negative int, used for composite keys
// and global variable ids.
func hashName(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}

// FieldInfo describes one field of a composite. Comp points back to the
// owning CompInfo.
type FieldInfo struct {
	Comp     *CompInfo
	Name     string // MissingFieldName for unnamed bitfields
	Typ      Type
	Bitfield *int // nil when the field is not a bitfield
	Attrs    []Attribute
	Loc      Location
}

// EnumItem is one enumeration constant.
type EnumItem struct {
	Name  string
	Value Exp
	Loc   Location
}

// EnumInfo describes an enumeration, shared by identity.
type EnumInfo struct {
	Name       string
	Items      []EnumItem
	Attrs      []Attribute
	Referenced bool
}

// VarInfo describes a variable or function name, shared by identity
// between its declaration, its definition and every use.
type VarInfo struct {
	Name       string
	Typ        Type
	Attrs      []Attribute
	Storage    Storage
	Glob       bool
	Inline     bool
	Decl       Location
	ID         int // hash of the name for globals, per-function counter for locals
	AddrOf     bool
	Referenced bool
}

// --- Expressions ---

// Exp is the interface for side-effect-free expressions.
type Exp interface {
	implExp()
}

// Const is a constant expression.
type Const struct {
	C Constant
}

// Lval reads the value of an lvalue.
type Lval struct {
	Lv Lvalue
}

// SizeOf is sizeof(type). Kept symbolic until folded.
type SizeOf struct {
	T Type
}

// SizeOfE is sizeof(expression).
type SizeOfE struct {
	E Exp
}

// AlignOf is __alignof__(type).
type AlignOf struct {
	T Type
}

// AlignOfE is __alignof__(expression).
type AlignOfE struct {
	E Exp
}

// UnOp is a unary operation with its result type.
type UnOp struct {
	Op UOp
	E  Exp
	T  Type
}

// BinOp is a binary operation with its result type.
type BinOp struct {
	Op   BOp
	L, R Exp
	T    Type
}

// CastE casts an expression to a type.
type CastE struct {
	T Type
	E Exp
}

// AddrOf takes the address of an lvalue (&lv).
type AddrOf struct {
	Lv Lvalue
}

// StartOf marks the conversion of an array lvalue to a pointer to its
// first element. It is implicit in C and never printed.
type StartOf struct {
	Lv Lvalue
}

func (*Const) implExp()    {}
func (*Lval) implExp()     {}
func (*SizeOf) implExp()   {}
func (*SizeOfE) implExp()  {}
func (*AlignOf) implExp()  {}
func (*AlignOfE) implExp() {}
func (*UnOp) implExp()     {}
func (*BinOp) implExp()    {}
func (*CastE) implExp()    {}
func (*AddrOf) implExp()   {}
func (*StartOf) implExp()  {}

// --- Constants ---

// Constant is the interface for literal constants.
type Constant interface {
	implConstant()
}

// CInt64 is an integer constant. Text, when non-empty, preserves the
// original source spelling and is preferred by the printer.
type CInt64 struct {
	V    int64
	Kind IKind
	Text string
}

// CStr is a string literal.
type CStr struct {
	S string
}

// CChr is a character literal.
type CChr struct {
	C byte
}

// CReal is a floating-point constant with an optional source spelling.
type CReal struct {
	F    float64
	Kind FKind
	Text string
}

func (*CInt64) implConstant() {}
func (*CStr) implConstant()   {}
func (*CChr) implConstant()   {}
func (*CReal) implConstant()  {}

// --- Lvalues ---

// Lvalue is a host plus an offset chain.
type Lvalue struct {
	Host LHost
	Off  Offset
}

// LHost is the base of an lvalue: a variable or a dereferenced address.
type LHost interface {
	implLHost()
}

// Var is a variable host, referencing its VarInfo by identity.
type Var struct {
	Vi *VarInfo
}

// Mem dereferences a pointer expression.
type Mem struct {
	E Exp
}

func (*Var) implLHost() {}
func (*Mem) implLHost() {}

// Offset is a possibly nested field/index chain terminated by NoOffset.
type Offset interface {
	implOffset()
}

// NoOffset terminates an offset chain.
type NoOffset struct{}

// Field selects a composite member, then continues with Next.
type Field struct {
	F    *FieldInfo
	Next Offset
}

// Index selects an array element, then continues with Next.
type Index struct {
	E    Exp
	Next Offset
}

func (NoOffset) implOffset() {}
func (*Field) implOffset()   {}
func (*Index) implOffset()   {}

// --- Initializers ---

// Init is the interface for initializers.
type Init interface {
	implInit()
}

// SingleInit initializes with one expression.
type SingleInit struct {
	E Exp
}

// InitItem pairs a designator offset (a single Field or Index terminated
// by NoOffset) with an initializer.
type InitItem struct {
	Off  Offset
	Init Init
}

// CompoundInit initializes an aggregate of the given type.
type CompoundInit struct {
	T     Type
	Inits []InitItem
}

func (*SingleInit) implInit()   {}
func (*CompoundInit) implInit() {}

// --- Instructions ---

// Instr is an effectful operation with no control flow.
type Instr interface {
	implInstr()
	InstrLoc() Location
}

// Set assigns an expression to an lvalue.
type Set struct {
	Lv  Lvalue
	E   Exp
	Loc Location
}

// Call invokes a function, optionally storing the result. Dest is nil
// when the result is dropped.
type Call struct {
	Dest *Lvalue
	Fn   Exp
	Args []Exp
	Loc  Location
}

// AsmOutput is one output operand of an inline-assembly instruction.
type AsmOutput struct {
	Constraint string
	Lv         Lvalue
}

// AsmInput is one input operand of an inline-assembly instruction.
type AsmInput struct {
	Constraint string
	E          Exp
}

// Asm is an inline-assembly instruction.
type Asm struct {
	Attrs     []Attribute
	Templates []string
	Outputs   []AsmOutput
	Inputs    []AsmInput
	Clobbers  []string
	Loc       Location
}

func (*Set) implInstr()  {}
func (*Call) implInstr() {}
func (*Asm) implInstr()  {}

func (i *Set) InstrLoc() Location  { return i.Loc }
func (i *Call) InstrLoc() Location { return i.Loc }
func (i *Asm) InstrLoc() Location  { return i.Loc }

// --- Statements ---

// Stmt is a statement with labels, CFG links and a per-function id.
// SID is -1 until the CFG builder assigns ids.
type Stmt struct {
	Labels []Label
	Kind   StmtKind
	SID    int
	Succs  []*Stmt
	Preds  []*Stmt
}

// Block is an attribute list plus an ordered statement sequence.
type Block struct {
	Attrs []Attribute
	Stmts []*Stmt
}

// StmtKind is the interface for statement kinds.
type StmtKind interface {
	implStmtKind()
}

// Sinstr is a run of instructions executed in sequence.
type Sinstr struct {
	Instrs []Instr
}

// Sreturn returns from the function; E is nil for a plain return.
type Sreturn struct {
	E   Exp
	Loc Location
}

// Sgoto jumps to Target. Target may be retargeted in place; it is
// dereferenced only after the CFG has been computed.
type Sgoto struct {
	Target *Stmt
	Loc    Location
}

// Sbreak exits the innermost enclosing loop or switch.
type Sbreak struct {
	Loc Location
}

// Scontinue continues the innermost enclosing loop.
type Scontinue struct {
	Loc Location
}

// Sif is a two-armed conditional.
type Sif struct {
	Cond Exp
	Then *Block
	Else *Block
	Loc  Location
}

// Sswitch is a switch; Cases references the statements inside Body that
// carry case or default labels.
type Sswitch struct {
	Cond  Exp
	Body  *Block
	Cases []*Stmt
	Loc   Location
}

// Sloop is a while(1) loop; exits happen via Sbreak or Sgoto.
type Sloop struct {
	Body *Block
	Loc  Location
}

// Sblock is a nested block.
type Sblock struct {
	B *Block
}

func (*Sinstr) implStmtKind()    {}
func (*Sreturn) implStmtKind()   {}
func (*Sgoto) implStmtKind()     {}
func (*Sbreak) implStmtKind()    {}
func (*Scontinue) implStmtKind() {}
func (*Sif) implStmtKind()       {}
func (*Sswitch) implStmtKind()   {}
func (*Sloop) implStmtKind()     {}
func (*Sblock) implStmtKind()    {}

// Label is a statement label.
type Label interface {
	implLabel()
}

// NameLabel is a named label; User distinguishes source labels from
// synthetic ones.
type NameLabel struct {
	Name string
	Loc  Location
	User bool
}

// CaseLabel is a case label inside a switch.
type CaseLabel struct {
	E   Exp
	Loc Location
}

// DefaultLabel is the default label inside a switch.
type DefaultLabel struct {
	Loc Location
}

func (*NameLabel) implLabel()    {}
func (*CaseLabel) implLabel()    {}
func (*DefaultLabel) implLabel() {}

// --- Functions, globals, files ---

// Fundec is a function definition. Svar is shared with any prototype of
// the same function. Sformals is the same slice as the Params of the
// function type of Svar; use SetFormals to change it.
type Fundec struct {
	Svar       *VarInfo
	Sformals   []*VarInfo
	Slocals    []*VarInfo
	Smaxid     int // largest local id used, formals are numbered from 0
	Sbody      *Block
	Inline     bool
	Smaxstmtid int // -1 until cfg.Compute runs; then one past the largest statement id
}

// Global is a top-level element of a file.
type Global interface {
	implGlobal()
}

// GType defines a typedef.
type GType struct {
	Name string
	Typ  Type
	Loc  Location
}

// GCompTag defines a struct or union tag. It must appear before any
// TComp that references Ci outside a pointer.
type GCompTag struct {
	Ci  *CompInfo
	Loc Location
}

// GEnumTag defines an enumeration tag.
type GEnumTag struct {
	Ei  *EnumInfo
	Loc Location
}

// GDecl declares a variable or function prototype.
type GDecl struct {
	Vi  *VarInfo
	Loc Location
}

// GVar defines a variable, with an optional initializer.
type GVar struct {
	Vi   *VarInfo
	Init Init // nil when absent
	Loc  Location
}

// GFun defines a function.
type GFun struct {
	Fd  *Fundec
	Loc Location
}

// GAsm is top-level inline assembly.
type GAsm struct {
	Text string
	Loc  Location
}

// GPragma is a top-level pragma in attribute form.
type GPragma struct {
	A   Attribute
	Loc Location
}

// GText is verbatim text emitted as is.
type GText struct {
	S string
}

func (*GType) implGlobal()    {}
func (*GCompTag) implGlobal() {}
func (*GEnumTag) implGlobal() {}
func (*GDecl) implGlobal()    {}
func (*GVar) implGlobal()     {}
func (*GFun) implGlobal()     {}
func (*GAsm) implGlobal()     {}
func (*GPragma) implGlobal()  {}
func (*GText) implGlobal()    {}

// GlobalLoc returns the location of a global, or NoLoc for verbatim text.
func GlobalLoc(g Global) Location {
	switch g := g.(type) {
	case *GType:
		return g.Loc
	case *GCompTag:
		return g.Loc
	case *GEnumTag:
		return g.Loc
	case *GDecl:
		return g.Loc
	case *GVar:
		return g.Loc
	case *GFun:
		return g.Loc
	case *GAsm:
		return g.Loc
	case *GPragma:
		return g.Loc
	}
	return NoLoc
}

// File is one translation unit.
type File struct {
	Name           string
	Globals        []Global
	GlobInit       *Fundec // optional initializer for global variables
	GlobInitCalled bool    // a call to GlobInit has been injected into main
}
