// Package cprint emits IR files back out as C source. The output is
// valid ISO C in the GCC dialect, or the MSVC dialect when the target
// data model says so: integer suffixes, __int64, __declspec placement,
// __asm blocks and line-directive spelling all follow the dialect.
package cprint

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/nlucid/cil/pkg/cil"
	"github.com/nlucid/cil/pkg/machine"
)

// Options selects optional printer behavior.
type Options struct {
	// PrintLines emits line directives at globals and statements.
	PrintLines bool
	// LineAsComment prefixes line directives with //.
	LineAsComment bool
	// AttrHook overrides the spelling of individual attributes. Return
	// ok=false to fall back to the default rendering.
	AttrHook func(a cil.Attribute) (string, bool)
}

// Printer writes C source to an underlying writer.
type Printer struct {
	w      io.Writer
	m      *machine.Machine
	opts   Options
	indent int

	lastFile string // last file named in a line directive
}

// NewPrinter creates a printer for the given target dialect.
func NewPrinter(w io.Writer, m *machine.Machine, opts Options) *Printer {
	return &Printer{w: w, m: m, opts: opts}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

// --- Parenthesization levels ---

const (
	derefStarLevel  = 20
	indexLevel      = 20
	arrowLevel      = 20
	addrOfLevel     = 30
	multiplicativeLevel = 40
	additiveLevel   = 60
	comparativeLevel = 70
	bitwiseLevel    = 75
)

func parenthLevel(e cil.Exp) int {
	switch e := e.(type) {
	case *cil.BinOp:
		switch e.Op {
		case cil.BAnd, cil.BXor, cil.BOr:
			return bitwiseLevel
		case cil.Eq, cil.Ne, cil.Lt, cil.Gt, cil.Le, cil.Ge,
			cil.EqP, cil.NeP, cil.LtP, cil.GtP, cil.LeP, cil.GeP:
			return comparativeLevel
		case cil.PlusA, cil.PlusPI, cil.IndexPI, cil.MinusA, cil.MinusPI, cil.MinusPP,
			cil.Shiftlt, cil.Shiftrt:
			return additiveLevel
		default:
			return multiplicativeLevel
		}
	case *cil.UnOp, *cil.CastE, *cil.AddrOf, *cil.StartOf:
		return addrOfLevel
	case *cil.SizeOf, *cil.SizeOfE, *cil.AlignOf, *cil.AlignOfE:
		return indexLevel
	case *cil.Lval:
		switch e.Lv.Host.(type) {
		case *cil.Mem:
			return derefStarLevel
		}
		if _, ok := e.Lv.Off.(cil.NoOffset); !ok {
			return indexLevel
		}
		return 0
	}
	return 0
}

// --- Expressions ---

// ExpString renders an expression.
func (p *Printer) ExpString(e cil.Exp) string {
	switch e := e.(type) {
	case *cil.Const:
		return p.constString(e.C)
	case *cil.Lval:
		return p.LvalString(e.Lv)
	case *cil.UnOp:
		arg := p.expPrec(parenthLevel(e), e.E)
		if e.Op == cil.Neg && strings.HasPrefix(arg, "-") {
			// Keep - -5 from fusing into a decrement token.
			return "- " + arg
		}
		return e.Op.String() + arg
	case *cil.BinOp:
		lvl := parenthLevel(e)
		return p.expPrec(lvl, e.L) + " " + e.Op.String() + " " + p.expPrec(lvl, e.R)
	case *cil.CastE:
		return "(" + p.TypeString(e.T, "") + ")" + p.expPrec(addrOfLevel, e.E)
	case *cil.SizeOf:
		return "sizeof(" + p.TypeString(e.T, "") + ")"
	case *cil.SizeOfE:
		return "sizeof(" + p.ExpString(e.E) + ")"
	case *cil.AlignOf:
		return "__alignof__(" + p.TypeString(e.T, "") + ")"
	case *cil.AlignOfE:
		return "__alignof__(" + p.ExpString(e.E) + ")"
	case *cil.AddrOf:
		return "& " + p.lvalPrec(addrOfLevel, e.Lv)
	case *cil.StartOf:
		// Array decay is implicit in C.
		return p.LvalString(e.Lv)
	}
	return fmt.Sprintf("/* unknown exp %T */", e)
}

// expPrec renders e, parenthesized when its level reaches the context
// level. Additive under bitwise parenthesizes too, to quiet compilers.
func (p *Printer) expPrec(ctx int, e cil.Exp) string {
	lvl := parenthLevel(e)
	need := lvl >= ctx || (ctx == bitwiseLevel && lvl == additiveLevel)
	if need {
		return "(" + p.ExpString(e) + ")"
	}
	return p.ExpString(e)
}

// LvalString renders an lvalue.
func (p *Printer) LvalString(lv cil.Lvalue) string {
	switch h := lv.Host.(type) {
	case *cil.Var:
		return p.offsetString(h.Vi.Name, lv.Off)
	case *cil.Mem:
		if f, ok := lv.Off.(*cil.Field); ok {
			return p.offsetString(p.expPrec(arrowLevel, h.E)+"->"+f.F.Name, f.Next)
		}
		if _, ok := lv.Off.(cil.NoOffset); ok {
			return "*" + p.expPrec(derefStarLevel, h.E)
		}
		return p.offsetString("(*"+p.ExpString(h.E)+")", lv.Off)
	}
	return "/* unknown lval */"
}

func (p *Printer) lvalPrec(ctx int, lv cil.Lvalue) string {
	if parenthLevel(&cil.Lval{Lv: lv}) >= ctx {
		return "(" + p.LvalString(lv) + ")"
	}
	return p.LvalString(lv)
}

func (p *Printer) offsetString(base string, off cil.Offset) string {
	switch off := off.(type) {
	case cil.NoOffset:
		return base
	case *cil.Field:
		return p.offsetString(base+"."+off.F.Name, off.Next)
	case *cil.Index:
		return p.offsetString(base+"["+p.ExpString(off.E)+"]", off.Next)
	}
	return base
}

// --- Constants ---

func (p *Printer) constString(c cil.Constant) string {
	switch c := c.(type) {
	case *cil.CInt64:
		if c.Text != "" {
			return c.Text
		}
		suffix := ""
		switch c.Kind {
		case cil.IUInt:
			suffix = "U"
		case cil.ILong:
			suffix = "L"
		case cil.IULong:
			suffix = "UL"
		case cil.ILongLong:
			if p.m.Msvc {
				suffix = "L"
			} else {
				suffix = "LL"
			}
		case cil.IULongLong:
			if p.m.Msvc {
				suffix = "UL"
			} else {
				suffix = "ULL"
			}
		}
		// The most negative values cannot be written as a single
		// literal without overflowing its positive part.
		if c.V == math.MinInt32 {
			return "(-0x7FFFFFFF-1)"
		}
		if c.V == math.MinInt64 {
			return "(-0x7FFFFFFFFFFFFFFF-1)"
		}
		return fmt.Sprintf("%d%s", c.V, suffix)
	case *cil.CStr:
		return "\"" + escapeString(c.S) + "\""
	case *cil.CChr:
		return "'" + escapeChar(c.C) + "'"
	case *cil.CReal:
		if c.Text != "" {
			return c.Text
		}
		s := fmt.Sprintf("%g", c.F)
		if c.Kind == cil.FFloat {
			s += "f"
		} else if c.Kind == cil.FLongDouble {
			s += "L"
		}
		return s
	}
	return "/* unknown const */"
}

func escapeChar(c byte) string {
	switch c {
	case '\'':
		return "\\'"
	case '\\':
		return "\\\\"
	case '\n':
		return "\\n"
	case '\t':
		return "\\t"
	case '\r':
		return "\\r"
	case 0:
		return "\\000"
	}
	if c < 32 || c >= 127 {
		return fmt.Sprintf("\\%03o", c)
	}
	return string(rune(c))
}

func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\r':
			b.WriteString("\\r")
		default:
			if c < 32 || c >= 127 {
				fmt.Fprintf(&b, "\\%03o", c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

// --- Attributes ---

// attrInner renders the inside of one attribute: name or name(params).
func (p *Printer) attrInner(a cil.Attribute) string {
	if len(a.Params) == 0 {
		return a.Name
	}
	parts := make([]string, len(a.Params))
	for i, ap := range a.Params {
		parts[i] = p.attrParamString(ap)
	}
	return a.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (p *Printer) attrParamString(ap cil.AttrParam) string {
	switch ap := ap.(type) {
	case *cil.AInt:
		return fmt.Sprintf("%d", ap.N)
	case *cil.AStr:
		return "\"" + escapeString(ap.S) + "\""
	case *cil.AVar:
		return ap.Vi.Name
	case *cil.ACons:
		if len(ap.Params) == 0 {
			return ap.Name
		}
		parts := make([]string, len(ap.Params))
		for i, q := range ap.Params {
			parts[i] = p.attrParamString(q)
		}
		return ap.Name + "(" + strings.Join(parts, ", ") + ")"
	case *cil.ASizeOf:
		return "sizeof(" + p.TypeString(ap.T, "") + ")"
	case *cil.ASizeOfE:
		return "sizeof(" + p.attrParamString(ap.P) + ")"
	case *cil.AUnOp:
		return ap.Op.String() + p.attrParamString(ap.P)
	case *cil.ABinOp:
		return "(" + p.attrParamString(ap.L) + " " + ap.Op.String() + " " + p.attrParamString(ap.R) + ")"
	}
	return "/* unknown attr param */"
}

// attrOne renders one attribute; wrap reports whether the result still
// needs an __attribute__(( )) wrapper, and ok=false drops it entirely.
func (p *Printer) attrOne(a cil.Attribute) (s string, wrap, ok bool) {
	if p.opts.AttrHook != nil {
		if s, hooked := p.opts.AttrHook(a); hooked {
			return s, false, s != ""
		}
	}
	switch a.Name {
	case "const":
		return "const", false, true
	case "volatile":
		return "volatile", false, true
	case "restrict":
		return "__restrict", false, true
	case "cdecl", "stdcall", "fastcall":
		if p.m.Msvc {
			return "__" + a.Name, false, true
		}
		return a.Name, true, true
	case "declspec":
		return "__declspec(" + p.attrArgsString(a.Params) + ")", false, true
	case "mode", "format":
		// These confuse compilers when re-emitted.
		return "/* " + p.attrInner(a) + " */", false, true
	}
	return p.attrInner(a), true, true
}

func (p *Printer) attrArgsString(params []cil.AttrParam) string {
	parts := make([]string, len(params))
	for i, ap := range params {
		parts[i] = p.attrParamString(ap)
	}
	return strings.Join(parts, ", ")
}

// AttrsString renders an attribute list, grouping the attributes that
// need a GCC wrapper into one __attribute__(( )). In MSVC mode wrapped
// attributes are dropped since there is no spelling for them.
func (p *Printer) AttrsString(al []cil.Attribute) string {
	var plain, wrapped []string
	for _, a := range al {
		s, wrap, ok := p.attrOne(a)
		if !ok {
			continue
		}
		if wrap {
			wrapped = append(wrapped, s)
		} else {
			plain = append(plain, s)
		}
	}
	out := strings.Join(plain, " ")
	if len(wrapped) > 0 && !p.m.Msvc {
		if out != "" {
			out += " "
		}
		out += "__attribute__((" + strings.Join(wrapped, ", ") + "))"
	}
	return out
}

// --- Types and declarators ---

func (p *Printer) ikindString(k cil.IKind) string {
	if p.m.Msvc {
		switch k {
		case cil.ILongLong:
			return "__int64"
		case cil.IULongLong:
			return "unsigned __int64"
		}
	}
	return k.String()
}

// TypeString renders a type around a declared name. An empty name gives
// the pure type, for casts and sizeof.
func (p *Printer) TypeString(t cil.Type, name string) string {
	complexName := name != "" && !isBareName(name)
	return p.typeRec(t, name, complexName)
}

func isBareName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9')
		if !ok {
			return false
		}
	}
	return len(s) > 0
}

// typeRec threads the partially built declarator through the type
// structure. complexName tells array and function cases to parenthesize
// the declarator built so far.
func (p *Printer) typeRec(t cil.Type, name string, complexName bool) string {
	base := func(kw string, attrs []cil.Attribute) string {
		s := kw
		if a := p.AttrsString(attrs); a != "" {
			s += " " + a
		}
		if name != "" {
			s += " " + name
		}
		return s
	}
	switch t := t.(type) {
	case *cil.TVoid:
		return base("void", t.A)
	case *cil.TInt:
		return base(p.ikindString(t.Kind), t.A)
	case *cil.TFloat:
		return base(t.Kind.String(), t.A)
	case *cil.TBuiltinVaList:
		return base("__builtin_va_list", t.A)
	case *cil.TComp:
		kw := "union"
		if t.Ci.IsStruct {
			kw = "struct"
		}
		return base(kw+" "+t.Ci.Name, t.A)
	case *cil.TEnum:
		return base("enum "+t.Ei.Name, t.A)
	case *cil.TNamed:
		return base(t.Name, t.A)
	case *cil.TPtr:
		inner := "*"
		if a := p.AttrsString(t.A); a != "" {
			inner += a + " "
		}
		inner += name
		return p.typeRec(t.Elem, inner, true)
	case *cil.TArray:
		n := name
		if complexName {
			n = "(" + n + ")"
		}
		ln := ""
		if t.Len != nil {
			ln = p.ExpString(t.Len)
		}
		return p.typeRec(t.Elem, n+"["+ln+"]", false)
	case *cil.TFun:
		n := name
		if a := p.AttrsString(t.A); a != "" {
			// Calling-convention attributes go right before the name.
			n = a + " " + n
			complexName = true
		}
		if complexName {
			n = "(" + n + ")"
		}
		return p.typeRec(t.Ret, n+"("+p.paramsString(t)+")", false)
	}
	return fmt.Sprintf("/* unknown type %T */", t)
}

func (p *Printer) paramsString(t *cil.TFun) string {
	if t.Params == nil {
		if t.VarArg {
			return "..."
		}
		return ""
	}
	if len(t.Params) == 0 && !t.VarArg {
		return "void"
	}
	parts := make([]string, 0, len(t.Params)+1)
	for _, vi := range t.Params {
		parts = append(parts, p.TypeString(vi.Typ, vi.Name))
	}
	if t.VarArg {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

// VDeclString renders the declaration of a variable: storage modifiers,
// storage class, declarator and name attributes.
func (p *Printer) VDeclString(vi *cil.VarInfo) string {
	attrs := cil.SeparateStorageModifiers(p.m.Msvc, vi.Attrs)
	var storageMods, rest []cil.Attribute
	for _, a := range attrs {
		if a.Name == "declspec" {
			storageMods = append(storageMods, a)
		} else {
			rest = append(rest, a)
		}
	}
	var b strings.Builder
	if vi.Inline {
		b.WriteString("__inline ")
	}
	if s := vi.Storage.String(); s != "" {
		b.WriteString(s)
		b.WriteString(" ")
	}
	for _, a := range storageMods {
		s, _, ok := p.attrOne(a)
		if ok {
			b.WriteString(s)
			b.WriteString(" ")
		}
	}
	b.WriteString(p.TypeString(vi.Typ, vi.Name))
	if a := p.AttrsString(rest); a != "" {
		b.WriteString(" ")
		b.WriteString(a)
	}
	return b.String()
}

// --- Line directives ---

func (p *Printer) lineDirective(loc cil.Location, force bool) {
	if !p.opts.PrintLines || loc.Line <= 0 {
		return
	}
	if !force && loc.File == p.lastFile {
		return
	}
	p.lastFile = loc.File
	prefix := ""
	if p.opts.LineAsComment {
		prefix = "//"
	}
	if p.m.Msvc {
		fmt.Fprintf(p.w, "%s#line %d \"%s\"\n", prefix, loc.Line, loc.File)
	} else {
		fmt.Fprintf(p.w, "%s# %d \"%s\"\n", prefix, loc.Line, loc.File)
	}
}

// --- Instructions ---

// InstrString renders one instruction, without trailing newline.
func (p *Printer) InstrString(i cil.Instr) string {
	switch i := i.(type) {
	case *cil.Set:
		return p.LvalString(i.Lv) + " = " + p.ExpString(i.E) + ";"
	case *cil.Call:
		var b strings.Builder
		if i.Dest != nil {
			b.WriteString(p.LvalString(*i.Dest))
			b.WriteString(" = ")
		}
		b.WriteString(p.expPrec(addrOfLevel, i.Fn))
		b.WriteString("(")
		for k, a := range i.Args {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.ExpString(a))
		}
		b.WriteString(");")
		return b.String()
	case *cil.Asm:
		return p.asmString(i)
	}
	return fmt.Sprintf("/* unknown instr %T */;", i)
}

func (p *Printer) asmString(i *cil.Asm) string {
	var b strings.Builder
	if p.m.Msvc {
		b.WriteString("__asm {\n")
		for _, t := range i.Templates {
			b.WriteString(strings.Repeat("  ", p.indent+1))
			b.WriteString(t)
			b.WriteString("\n")
		}
		b.WriteString(strings.Repeat("  ", p.indent))
		b.WriteString("};")
		return b.String()
	}
	b.WriteString("__asm__ ")
	if cil.HasAttribute("volatile", i.Attrs) {
		b.WriteString("volatile ")
	}
	b.WriteString("(")
	for k, t := range i.Templates {
		if k > 0 {
			b.WriteString("\n" + strings.Repeat("  ", p.indent+1))
		}
		b.WriteString("\"" + escapeString(t) + "\"")
	}
	if len(i.Outputs) > 0 || len(i.Inputs) > 0 || len(i.Clobbers) > 0 {
		b.WriteString(": ")
		for k, o := range i.Outputs {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteString("\"" + escapeString(o.Constraint) + "\" (" + p.LvalString(o.Lv) + ")")
		}
	}
	if len(i.Inputs) > 0 || len(i.Clobbers) > 0 {
		b.WriteString(": ")
		for k, in := range i.Inputs {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteString("\"" + escapeString(in.Constraint) + "\" (" + p.ExpString(in.E) + ")")
		}
	}
	if len(i.Clobbers) > 0 {
		b.WriteString(": ")
		for k, c := range i.Clobbers {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteString("\"" + escapeString(c) + "\"")
		}
	}
	b.WriteString(");")
	return b.String()
}

// --- Statements ---

func (p *Printer) printLabel(l cil.Label) {
	switch l := l.(type) {
	case *cil.NameLabel:
		fmt.Fprintf(p.w, "%s: ", l.Name)
	case *cil.CaseLabel:
		fmt.Fprintf(p.w, "case %s: ", p.ExpString(l.E))
	case *cil.DefaultLabel:
		fmt.Fprint(p.w, "default: ")
	}
}

// printStmt prints one statement. next, when non-nil, is the statement
// that follows in the same block; it lets the printer fold
// if-goto-next patterns back into structured C.
func (p *Printer) printStmt(s *cil.Stmt, next *cil.Stmt) {
	if len(s.Labels) > 0 {
		p.writeIndent()
		for _, l := range s.Labels {
			p.printLabel(l)
		}
		fmt.Fprintln(p.w)
	}
	p.printStmtKind(s, next)
}

// gotoTargetsNext reports whether the block is exactly one unlabeled
// goto whose target is next.
func gotoTargetsNext(b *cil.Block, next *cil.Stmt) bool {
	if next == nil || len(b.Stmts) != 1 || len(b.Stmts[0].Labels) != 0 {
		return false
	}
	g, ok := b.Stmts[0].Kind.(*cil.Sgoto)
	return ok && g.Target == next
}

func (p *Printer) printStmtKind(s *cil.Stmt, next *cil.Stmt) {
	switch k := s.Kind.(type) {
	case *cil.Sinstr:
		for _, i := range k.Instrs {
			p.lineDirective(i.InstrLoc(), false)
			p.writeIndent()
			fmt.Fprintln(p.w, p.InstrString(i))
		}
	case *cil.Sreturn:
		p.lineDirective(k.Loc, false)
		p.writeIndent()
		if k.E != nil {
			fmt.Fprintf(p.w, "return (%s);\n", p.ExpString(k.E))
		} else {
			fmt.Fprintln(p.w, "return;")
		}
	case *cil.Sgoto:
		p.lineDirective(k.Loc, false)
		p.writeIndent()
		fmt.Fprintf(p.w, "goto %s;\n", p.gotoLabel(k.Target))
	case *cil.Sbreak:
		p.lineDirective(k.Loc, false)
		p.writeIndent()
		fmt.Fprintln(p.w, "break;")
	case *cil.Scontinue:
		p.lineDirective(k.Loc, false)
		p.writeIndent()
		fmt.Fprintln(p.w, "continue;")
	case *cil.Sif:
		p.lineDirective(k.Loc, false)
		switch {
		case gotoTargetsNext(k.Else, next):
			// else is a goto to the next statement: drop it.
			p.writeIndent()
			fmt.Fprintf(p.w, "if (%s) ", p.ExpString(k.Cond))
			p.printBlockBraces(k.Then)
		case gotoTargetsNext(k.Then, next):
			// then is a goto to the next statement: invert.
			p.writeIndent()
			fmt.Fprintf(p.w, "if (! (%s)) ", p.ExpString(k.Cond))
			p.printBlockBraces(k.Else)
		case len(k.Else.Stmts) == 0:
			p.writeIndent()
			fmt.Fprintf(p.w, "if (%s) ", p.ExpString(k.Cond))
			p.printBlockBraces(k.Then)
		default:
			p.writeIndent()
			fmt.Fprintf(p.w, "if (%s) ", p.ExpString(k.Cond))
			p.printBlockBracesNoNL(k.Then)
			fmt.Fprint(p.w, " else ")
			p.printBlockBraces(k.Else)
		}
	case *cil.Sswitch:
		p.lineDirective(k.Loc, false)
		p.writeIndent()
		fmt.Fprintf(p.w, "switch (%s) ", p.ExpString(k.Cond))
		p.printBlockBraces(k.Body)
	case *cil.Sloop:
		p.printLoop(k)
	case *cil.Sblock:
		p.writeIndent()
		p.printBlockBraces(k.B)
	default:
		p.writeIndent()
		fmt.Fprintf(p.w, "/* unknown stmt %T */;\n", s.Kind)
	}
}

// printLoop recognizes a loop whose first statement is the exit test and
// prints it as a while with a condition; everything else is while (1).
func (p *Printer) printLoop(k *cil.Sloop) {
	p.lineDirective(k.Loc, false)
	stmts := skipEmptyStmts(k.Body.Stmts)
	if len(stmts) > 0 && len(stmts[0].Labels) == 0 {
		if fi, ok := stmts[0].Kind.(*cil.Sif); ok {
			thenS := skipEmptyStmts(fi.Then.Stmts)
			elseS := skipEmptyStmts(fi.Else.Stmts)
			cond, rest := "", []*cil.Stmt(nil)
			if len(thenS) == 0 && startsWithBreak(elseS) {
				cond = p.ExpString(fi.Cond)
				rest = stmts[1:]
			} else if startsWithBreak(thenS) && len(elseS) == 0 {
				cond = "! (" + p.ExpString(fi.Cond) + ")"
				rest = stmts[1:]
			}
			if cond != "" {
				p.writeIndent()
				fmt.Fprintf(p.w, "while (%s) ", cond)
				p.printBlockBraces(&cil.Block{Attrs: k.Body.Attrs, Stmts: rest})
				return
			}
		}
	}
	p.writeIndent()
	fmt.Fprint(p.w, "while (1) ")
	p.printBlockBraces(k.Body)
}

// skipEmptyStmts drops leading statements that do nothing and carry no
// labels.
func skipEmptyStmts(ss []*cil.Stmt) []*cil.Stmt {
	for len(ss) > 0 {
		si, ok := ss[0].Kind.(*cil.Sinstr)
		if !ok || len(si.Instrs) > 0 || len(ss[0].Labels) > 0 {
			break
		}
		ss = ss[1:]
	}
	return ss
}

func startsWithBreak(ss []*cil.Stmt) bool {
	if len(ss) == 0 || len(ss[0].Labels) != 0 {
		return false
	}
	_, ok := ss[0].Kind.(*cil.Sbreak)
	return ok
}

// gotoLabel finds the label to jump to. A target without a name label
// still prints something that parses, with a warning.
func (p *Printer) gotoLabel(target *cil.Stmt) string {
	if target != nil {
		for _, l := range target.Labels {
			if nl, ok := l.(*cil.NameLabel); ok {
				return nl.Name
			}
		}
	}
	cil.Warnf("goto target has no label")
	return "__invalid_label"
}

func (p *Printer) printBlockBraces(b *cil.Block) {
	p.printBlockBracesNoNL(b)
	fmt.Fprintln(p.w)
}

func (p *Printer) printBlockBracesNoNL(b *cil.Block) {
	fmt.Fprintln(p.w, "{")
	p.indent++
	if a := p.AttrsString(b.Attrs); a != "" {
		p.writeIndent()
		fmt.Fprintf(p.w, "/* %s */\n", a)
	}
	for i, s := range b.Stmts {
		var next *cil.Stmt
		if i+1 < len(b.Stmts) {
			next = b.Stmts[i+1]
		}
		p.printStmt(s, next)
	}
	p.indent--
	p.writeIndent()
	fmt.Fprint(p.w, "}")
}

// --- Initializers ---

// InitString renders an initializer.
func (p *Printer) InitString(ini cil.Init) string {
	switch ini := ini.(type) {
	case *cil.SingleInit:
		return p.ExpString(ini.E)
	case *cil.CompoundInit:
		parts := make([]string, 0, len(ini.Inits))
		for _, it := range ini.Inits {
			switch off := it.Off.(type) {
			case *cil.Field:
				parts = append(parts, "."+off.F.Name+" = "+p.InitString(it.Init))
			case *cil.Index:
				parts = append(parts, "["+p.ExpString(off.E)+"] = "+p.InitString(it.Init))
			default:
				parts = append(parts, p.InitString(it.Init))
			}
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "/* unknown init */"
}

// --- Globals ---

// commentedPragmas are pragmas that downstream compilers do not know;
// they survive only inside comments.
func commentedPragma(name string) bool {
	return strings.HasPrefix(name, "box") || name == "combiner" || name == "cilnoremove"
}

// suppressedDecl reports declarations that must not reach the compiler:
// its own builtins and modeled declarations.
func suppressedDecl(vi *cil.VarInfo) bool {
	return strings.HasPrefix(vi.Name, "__builtin_") || cil.HasAttribute("boxmodel", vi.Attrs)
}

// PrintGlobal prints one global.
func (p *Printer) PrintGlobal(g cil.Global) {
	switch g := g.(type) {
	case *cil.GType:
		p.lineDirective(g.Loc, false)
		fmt.Fprintf(p.w, "typedef %s;\n", p.TypeString(g.Typ, g.Name))
	case *cil.GCompTag:
		p.lineDirective(g.Loc, false)
		p.printCompDef(g.Ci)
	case *cil.GEnumTag:
		p.lineDirective(g.Loc, false)
		p.printEnumDef(g.Ei)
	case *cil.GDecl:
		if suppressedDecl(g.Vi) {
			fmt.Fprintf(p.w, "/* compiler builtin: %s */\n", g.Vi.Name)
			return
		}
		p.lineDirective(g.Loc, false)
		fmt.Fprintf(p.w, "%s;\n", p.VDeclString(g.Vi))
	case *cil.GVar:
		p.lineDirective(g.Loc, false)
		if g.Init != nil {
			fmt.Fprintf(p.w, "%s = %s;\n", p.VDeclString(g.Vi), p.InitString(g.Init))
		} else {
			fmt.Fprintf(p.w, "%s;\n", p.VDeclString(g.Vi))
		}
	case *cil.GFun:
		p.printFunction(g.Fd, g.Loc)
	case *cil.GAsm:
		p.lineDirective(g.Loc, false)
		if p.m.Msvc {
			fmt.Fprintf(p.w, "__asm { %s };\n", g.Text)
		} else {
			fmt.Fprintf(p.w, "__asm__ (\"%s\");\n", escapeString(g.Text))
		}
	case *cil.GPragma:
		p.lineDirective(g.Loc, false)
		body := "#pragma " + p.attrInner(g.A)
		if commentedPragma(g.A.Name) {
			fmt.Fprintf(p.w, "/* %s */\n", body)
		} else {
			fmt.Fprintf(p.w, "%s\n", body)
		}
	case *cil.GText:
		fmt.Fprintln(p.w, g.S)
	default:
		fmt.Fprintf(p.w, "/* unknown global %T */\n", g)
	}
}

func (p *Printer) printCompDef(ci *cil.CompInfo) {
	kw := "union"
	if ci.IsStruct {
		kw = "struct"
	}
	fmt.Fprintf(p.w, "%s %s {\n", kw, ci.Name)
	p.indent++
	for _, f := range ci.Fields {
		p.writeIndent()
		name := f.Name
		if name == cil.MissingFieldName {
			name = ""
		}
		decl := p.TypeString(f.Typ, name)
		if f.Bitfield != nil {
			decl += fmt.Sprintf(" : %d", *f.Bitfield)
		}
		if a := p.AttrsString(f.Attrs); a != "" {
			decl += " " + a
		}
		fmt.Fprintf(p.w, "%s;\n", decl)
	}
	p.indent--
	suffix := ""
	if a := p.AttrsString(ci.Attrs); a != "" {
		suffix = " " + a
	}
	fmt.Fprintf(p.w, "}%s;\n", suffix)
}

func (p *Printer) printEnumDef(ei *cil.EnumInfo) {
	fmt.Fprintf(p.w, "enum %s {\n", ei.Name)
	p.indent++
	for i, it := range ei.Items {
		p.writeIndent()
		fmt.Fprintf(p.w, "%s = %s", it.Name, p.ExpString(it.Value))
		if i < len(ei.Items)-1 {
			fmt.Fprint(p.w, ",")
		}
		fmt.Fprintln(p.w)
	}
	p.indent--
	suffix := ""
	if a := p.AttrsString(ei.Attrs); a != "" {
		suffix = " " + a
	}
	fmt.Fprintf(p.w, "}%s;\n", suffix)
}

// printFunction prints a function definition. When the function carries
// attributes a bare prototype goes first, since attributes on the
// definition itself confuse GCC.
func (p *Printer) printFunction(fd *cil.Fundec, loc cil.Location) {
	if len(fd.Svar.Attrs) > 0 {
		p.lineDirective(loc, false)
		fmt.Fprintf(p.w, "%s;\n", p.VDeclString(fd.Svar))
	}
	p.lineDirective(loc, true)
	saved := fd.Svar.Attrs
	fd.Svar.Attrs = nil
	header := p.VDeclString(fd.Svar)
	fd.Svar.Attrs = saved
	fmt.Fprintf(p.w, "%s\n{\n", header)
	p.indent++
	for _, vi := range fd.Slocals {
		p.writeIndent()
		fmt.Fprintf(p.w, "%s;\n", p.VDeclString(vi))
	}
	if len(fd.Slocals) > 0 {
		fmt.Fprintln(p.w)
	}
	for i, s := range fd.Sbody.Stmts {
		var next *cil.Stmt
		if i+1 < len(fd.Sbody.Stmts) {
			next = fd.Sbody.Stmts[i+1]
		}
		p.printStmt(s, next)
	}
	p.indent--
	fmt.Fprintln(p.w, "}")
}

// PrintFile prints a whole translation unit.
func (p *Printer) PrintFile(f *cil.File) {
	fmt.Fprintf(p.w, "/* Generated by cil from %s */\n", f.Name)
	for _, g := range f.Globals {
		p.PrintGlobal(g)
	}
	if f.GlobInit != nil {
		p.printFunction(f.GlobInit, cil.NoLoc)
	}
}
