package cc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/halcyon6303/orgtool/diag"
)

// slot describes one local variable or parameter's location within the
// current function's frame, relative to the frame pointer. Both locals and parameters are addressed
// as small positive,X offsets from a frame pointer anchored at the
// bottom of the frame: the HD6303's indexed addressing mode only
// encodes an unsigned 0-255 offset, so a classic "locals below, args
// above a mid-frame pointer" scheme isn't directly addressable and this
// toolchain instead keeps the frame pointer at the lowest address used by
// the frame.
type slot struct {
	offset int
	typ    *Type
}

// externFunc is one assigned service-trap selector for a user `external`
// declaration.
type externFunc struct {
	selector byte
	ret      *Type
	nparams  int
}

// Generator lowers one or more semantically-checked translation units into
// a single assembly-text stream, matching asm.Assemble's input grammar
// (labels, mnemonics, EQU/RMB/FCB/FCC/FDB directives). It mirrors the
// single-pass code generator: one textual pass
// over the AST per function, no separate intermediate representation.
type Generator struct {
	out    strings.Builder
	bundle *diag.Bundle

	tuIndex  int
	funcName string

	locals map[string]slot
	params map[string]slot

	localsSize int
	labelSeq   int
	stringSeq  int
	tempSeq    int
	maxTemp    int

	breakLabels    []string
	continueLabels []string

	checked   *CheckedUnit
	externs   map[string]externFunc
	usesMul   bool
	usesDivOp bool
	usesShift bool

	// strs deduplicates string literals by content; every blob is emitted
	// once, zero-terminated, after the last function.
	strs     map[string]string
	strOrder []string
}

// NewGenerator creates a Generator for translation unit index tuIndex
// (used to keep per-TU label and string-literal namespaces distinct once
// every translation unit's assembly text is concatenated).
func NewGenerator(tuIndex int, checked *CheckedUnit, externs map[string]externFunc, bundle *diag.Bundle) *Generator {
	return &Generator{tuIndex: tuIndex, checked: checked, externs: externs, bundle: bundle, strs: map[string]string{}}
}

func (g *Generator) emit(format string, args ...any) {
	fmt.Fprintf(&g.out, format, args...)
	g.out.WriteByte('\n')
}

func (g *Generator) label(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("L%d_%s_%d", g.tuIndex, prefix, g.labelSeq)
}

// Generate lowers every declaration in the translation unit, emitting data
// storage for globals and string literals, then one code block per
// function body. libMode functions are emitted
// exactly like main-mode ones except the caller (cc.go's CompileMulti)
// never wraps them with the init/runtime prologue.
func (g *Generator) Generate() (string, *diag.Bundle) {
	g.emitGlobals()
	for _, d := range g.checked.TU.Decls {
		fd, ok := d.(*FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		g.genFunction(fd)
	}
	g.emitStrings()
	return g.out.String(), g.bundle
}

// emitStrings writes the translation unit's deduplicated string-literal
// blobs. FCC already appends the zero terminator.
func (g *Generator) emitStrings() {
	if len(g.strOrder) == 0 {
		return
	}
	g.emit("; string literals")
	for _, content := range g.strOrder {
		g.emit("%s fcc %s", g.strs[content], quoteFCC(content))
	}
}

// quoteFCC renders content in the assembler's double-quoted string form.
func quoteFCC(content string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(content); i++ {
		switch c := content[i]; c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// stringLabel interns a string literal and returns its label.
func (g *Generator) stringLabel(content string) string {
	if lbl, ok := g.strs[content]; ok {
		return lbl
	}
	lbl := fmt.Sprintf("L%d_str%d", g.tuIndex, g.stringSeq)
	g.stringSeq++
	g.strs[content] = lbl
	g.strOrder = append(g.strOrder, content)
	return lbl
}

// emitGlobals allocates storage for this translation unit's own global
// variables. `extern`-declared globals allocate nothing here: they refer
// to storage some other translation unit's emitGlobals provides, and once
// every TU's assembly is concatenated into one symbol table
// a second rmb/fcb for the same name would collide.
func (g *Generator) emitGlobals() {
	names := make([]string, 0, len(g.checked.Globals))
	for n, vd := range g.checked.Globals {
		if vd.IsExtern {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return
	}
	g.emit("; global storage")
	for _, name := range names {
		vd := g.checked.Globals[name]
		size := vd.Type.Size()
		if vd.Init != nil {
			if v, ok := foldConst(vd.Init); ok {
				if vd.Type.IsByte() {
					g.emit("%s fcb %d", name, byte(v))
					continue
				}
				g.emit("%s fdb %d", name, uint16(v))
				continue
			}
		}
		g.emit("%s rmb %d", name, size)
	}
}

// genFunction emits one function's prologue, body, and epilogue.
func (g *Generator) genFunction(fd *FuncDecl) {
	g.funcName = fd.Name
	g.locals = map[string]slot{}
	g.params = map[string]slot{}
	g.localsSize = 0
	g.breakLabels = nil
	g.continueLabels = nil

	g.layoutLocals(fd.Body)
	argBase := g.localsSize + 4 // +2 saved X, +2 return address

	offset := argBase
	for _, p := range fd.Params {
		g.params[p.Name] = slot{offset: offset, typ: p.Type.Decayed()}
		offset += 2
	}

	g.emit("")
	g.emit("%s", fd.Name)
	g.emit("\tpshx")
	for i := 0; i < g.localsSize; i++ {
		g.emit("\tdes")
	}
	// The frame pointer anchors at the lowest allocated frame byte, one
	// above the stack pointer's free slot, so later pushes never overlap
	// local storage.
	g.emit("\ttsx")
	g.emit("\tinx")
	g.emit("\tstx ccfp")

	if fd.Name == "main" {
		// One-shot trap-interface setup before the first service call.
		g.emit("\tldab #0")
		g.emit("\tswi")
		g.emit("\tfcb %d", machineTrapInitSelector)
	}

	g.genBlockBody(fd.Body)

	g.emit("%s_ret", fd.Name)
	g.emit("\tstd ccret")
	g.emit("\tldx ccfp")
	if g.localsSize > 0 {
		g.emit("\tldab #%d", g.localsSize)
		g.emit("\tabx")
	}
	g.emit("\tdex")
	g.emit("\ttxs")
	g.emit("\tpulx")
	g.emit("\tldd ccret")
	g.emit("\trts")
}

// layoutLocals walks a function body's block-local declarations and
// assigns each distinct local name a byte offset within the frame. Every
// name keeps its slot for the whole function: sibling blocks do not share
// storage, and blocks that declare the same name share one slot.
func (g *Generator) layoutLocals(b *BlockStmt) {
	var walk func(b *BlockStmt)
	walk = func(b *BlockStmt) {
		for _, local := range b.Locals {
			if _, exists := g.locals[local.Name]; !exists {
				g.locals[local.Name] = slot{offset: g.localsSize, typ: local.Type}
				g.localsSize += local.Type.Size()
			}
		}
		for _, st := range b.Stmts {
			walkStmt(st, walk)
		}
	}
	walk(b)
}

func walkStmt(st Stmt, visitBlock func(*BlockStmt)) {
	switch n := st.(type) {
	case *BlockStmt:
		visitBlock(n)
	case *IfStmt:
		walkStmt(n.Then, visitBlock)
		if n.Else != nil {
			walkStmt(n.Else, visitBlock)
		}
	case *WhileStmt:
		walkStmt(n.Body, visitBlock)
	case *DoWhileStmt:
		walkStmt(n.Body, visitBlock)
	case *ForStmt:
		walkStmt(n.Body, visitBlock)
	case *SwitchStmt:
		for _, c := range n.Cases {
			for _, s := range c.Body {
				walkStmt(s, visitBlock)
			}
		}
	case *LabelStmt:
		walkStmt(n.Stmt, visitBlock)
	}
}

func (g *Generator) genBlockBody(b *BlockStmt) {
	for _, local := range b.Locals {
		if local.Init != nil {
			g.genAssignTo(&Ident{exprBase: exprBase{Type: local.Type}, Name: local.Name}, local.Init)
		}
	}
	for _, st := range b.Stmts {
		g.genStmt(st)
	}
}

func (g *Generator) genStmt(st Stmt) {
	switch n := st.(type) {
	case *BlockStmt:
		g.genBlockBody(n)
	case *ExprStmt:
		if n.X != nil {
			g.genExpr(n.X)
		}
	case *IfStmt:
		elseLabel := g.label("else")
		endLabel := g.label("endif")
		g.genBranchIfFalse(n.Cond, elseLabel)
		g.genStmt(n.Then)
		if n.Else != nil {
			g.emit("\tbra %s", endLabel)
			g.emit("%s", elseLabel)
			g.genStmt(n.Else)
			g.emit("%s", endLabel)
		} else {
			g.emit("%s", elseLabel)
		}
	case *WhileStmt:
		top := g.label("wtop")
		end := g.label("wend")
		g.breakLabels = append(g.breakLabels, end)
		g.continueLabels = append(g.continueLabels, top)
		g.emit("%s", top)
		g.genBranchIfFalse(n.Cond, end)
		g.genStmt(n.Body)
		g.emit("\tbra %s", top)
		g.emit("%s", end)
		g.popLoopLabels()
	case *DoWhileStmt:
		top := g.label("dtop")
		end := g.label("dend")
		g.breakLabels = append(g.breakLabels, end)
		g.continueLabels = append(g.continueLabels, top)
		g.emit("%s", top)
		g.genStmt(n.Body)
		g.genBranchIfFalse(n.Cond, end)
		g.emit("\tbra %s", top)
		g.emit("%s", end)
		g.popLoopLabels()
	case *ForStmt:
		if n.Init != nil {
			g.genStmt(n.Init)
		}
		top := g.label("ftop")
		post := g.label("fpost")
		end := g.label("fend")
		g.breakLabels = append(g.breakLabels, end)
		g.continueLabels = append(g.continueLabels, post)
		g.emit("%s", top)
		if n.Cond != nil {
			g.genBranchIfFalse(n.Cond, end)
		}
		g.genStmt(n.Body)
		g.emit("%s", post)
		if n.Post != nil {
			g.genExpr(n.Post)
		}
		g.emit("\tbra %s", top)
		g.emit("%s", end)
		g.popLoopLabels()
	case *SwitchStmt:
		g.genSwitch(n)
	case *BreakStmt:
		if len(g.breakLabels) > 0 {
			g.emit("\tbra %s", g.breakLabels[len(g.breakLabels)-1])
		}
	case *ContinueStmt:
		if len(g.continueLabels) > 0 {
			g.emit("\tbra %s", g.continueLabels[len(g.continueLabels)-1])
		}
	case *ReturnStmt:
		if n.Value != nil {
			g.genExpr(n.Value)
		}
		g.emit("\tbra %s_ret", g.funcName)
	case *GotoStmt:
		g.emit("\tbra %s_%s", g.funcName, n.Label)
	case *LabelStmt:
		g.emit("%s_%s", g.funcName, n.Name)
		g.genStmt(n.Stmt)
	}
}

func (g *Generator) popLoopLabels() {
	g.breakLabels = g.breakLabels[:len(g.breakLabels)-1]
	g.continueLabels = g.continueLabels[:len(g.continueLabels)-1]
}

// genSwitch lowers to a compare-and-branch chain for dense and sparse
// cases alike.
func (g *Generator) genSwitch(n *SwitchStmt) {
	end := g.label("swend")
	g.breakLabels = append(g.breakLabels, end)

	tag := g.nextTemp()
	g.genExpr(n.Tag)
	g.emit("\tstd %s", tag)
	var bodyLabels []string
	defaultLabel := end
	for _, c := range n.Cases {
		lbl := g.label("case")
		bodyLabels = append(bodyLabels, lbl)
		if c.IsDefault {
			defaultLabel = lbl
			continue
		}
		for _, v := range c.Values {
			g.emit("\tldd %s", tag)
			g.emit("\tsubd #%d", uint16(v))
			g.emit("\tbeq %s", lbl)
		}
	}
	g.emit("\tbra %s", defaultLabel)
	for i, c := range n.Cases {
		g.emit("%s", bodyLabels[i])
		for _, st := range c.Body {
			g.genStmt(st)
		}
	}
	g.emit("%s", end)
	g.releaseTemp()
	g.breakLabels = g.breakLabels[:len(g.breakLabels)-1]
}

// genBranchIfFalse evaluates a boolean expression and branches to label
// when it is false (zero), implementing comparisons as a subtract-and-
// branch pattern and &&/|| as explicit short-circuit jumps.
func (g *Generator) genBranchIfFalse(cond Expr, label string) {
	if b, ok := cond.(*BinaryExpr); ok {
		switch b.Op {
		case "&&":
			g.genBranchIfFalse(b.L, label)
			g.genBranchIfFalse(b.R, label)
			return
		case "||":
			cont := g.label("orcont")
			trueLbl := g.label("ortrue")
			g.genBranchIfTrue(b.L, trueLbl)
			g.genBranchIfFalse(b.R, label)
			g.emit("\tbra %s", cont)
			g.emit("%s", trueLbl)
			g.emit("%s", cont)
			return
		case "==", "!=", "<", ">", "<=", ">=":
			tmp := g.nextTemp()
			g.genExpr(b.R)
			g.emit("\tstd %s", tmp)
			g.genExpr(b.L)
			g.emit("\tsubd %s", tmp)
			g.emit("\t%s %s", inverseBranch(b.Op), label)
			g.releaseTemp()
			return
		}
	}
	g.genExpr(cond)
	tmp := g.nextTemp()
	g.emit("\tstd %s", tmp)
	g.emit("\tbeq %s", label)
	g.releaseTemp()
}

func (g *Generator) genBranchIfTrue(cond Expr, label string) {
	if b, ok := cond.(*BinaryExpr); ok {
		switch b.Op {
		case "==", "!=", "<", ">", "<=", ">=":
			tmp := g.nextTemp()
			g.genExpr(b.R)
			g.emit("\tstd %s", tmp)
			g.genExpr(b.L)
			g.emit("\tsubd %s", tmp)
			g.emit("\t%s %s", directBranch(b.Op), label)
			g.releaseTemp()
			return
		}
	}
	skip := g.label("skip")
	g.genBranchIfFalse(cond, skip)
	g.emit("\tbra %s", label)
	g.emit("%s", skip)
}

// inverseBranch returns the HD6303 branch mnemonic taken when the
// subtract-and-compare result means the original comparison op was false,
// i.e. the branch that skips the "true" path.
func inverseBranch(op string) string {
	switch op {
	case "==":
		return "bne"
	case "!=":
		return "beq"
	case "<":
		return "bge"
	case ">":
		return "ble"
	case "<=":
		return "bgt"
	case ">=":
		return "blt"
	default:
		return "bne"
	}
}

func directBranch(op string) string {
	switch op {
	case "==":
		return "beq"
	case "!=":
		return "bne"
	case "<":
		return "blt"
	case ">":
		return "bgt"
	case "<=":
		return "ble"
	case ">=":
		return "bge"
	default:
		return "beq"
	}
}

// nextTemp allocates the next scratch word in the shared cct pool and
// tracks the deepest concurrent use across the whole compilation, so
// cc.go can size the pool once all functions are generated.
func (g *Generator) nextTemp() string {
	name := fmt.Sprintf("cct%d", g.tempSeq)
	g.tempSeq++
	if g.tempSeq > g.maxTemp {
		g.maxTemp = g.tempSeq
	}
	return name
}

func (g *Generator) releaseTemp() { g.tempSeq-- }

// genExpr evaluates e, leaving its value in D (the 16-bit accumulator
// pair; B carries char-typed results). Intermediate operands live in the
// shared cct scratch cells.
func (g *Generator) genExpr(e Expr) {
	switch n := e.(type) {
	case *IntLit:
		g.emit("\tldd #%d", uint16(n.Value))
	case *CharLit:
		g.emit("\tldd #%d", uint16(n.Value)&0xFF)
	case *StringLit:
		n.Label = g.stringLabel(n.Value)
		g.emit("\tldd #%s", n.Label)
	case *Ident:
		g.genLoad(n.Name, n.Type)
	case *UnaryExpr:
		g.genExpr(n.X)
		switch n.Op {
		case "-":
			if n.X.ExprType().IsByte() {
				g.emit("\tnegb")
			} else {
				g.emit("\tcoma")
				g.emit("\tcomb")
				g.emit("\taddd #1")
			}
		case "~":
			g.emit("\tcomb")
			if !n.X.ExprType().IsByte() {
				g.emit("\tcoma")
			}
		case "!":
			notLbl := g.label("not")
			end := g.label("notend")
			tmp := g.nextTemp()
			g.emit("\tstd %s", tmp)
			g.emit("\tbne %s", notLbl)
			g.releaseTemp()
			g.emit("\tldd #1")
			g.emit("\tbra %s", end)
			g.emit("%s", notLbl)
			g.emit("\tldd #0")
			g.emit("%s", end)
		}
	case *BinaryExpr:
		g.genBinary(n)
	case *AssignExpr:
		g.genAssign(n)
	case *IncDecExpr:
		g.genIncDec(n)
	case *IndexExpr:
		g.genAddress(n)
		g.emit("\txgdx")
		g.loadFromX(n.Type, 0)
	case *MemberExpr:
		g.genAddress(n)
		g.emit("\txgdx")
		g.loadFromX(n.Type, 0)
	case *DerefExpr:
		g.genAddress(n)
		g.emit("\txgdx")
		g.loadFromX(n.Type, 0)
	case *AddrOfExpr:
		g.genAddress(n.X)
	case *SizeofExpr:
		var sz int
		if n.OfType != nil {
			sz = n.OfType.Size()
		} else {
			sz = n.OfExpr.ExprType().Size()
		}
		g.emit("\tldd #%d", sz)
	case *CastExpr:
		g.genExpr(n.X)
		if n.Type.IsByte() {
			g.emit("\tclra")
		}
	case *CallExpr:
		g.genCall(n)
	}
}

// loadFromX loads a value of type t from the address currently in X plus
// offset, leaving it in D.
func (g *Generator) loadFromX(t *Type, offset int) {
	if t.IsByte() {
		g.emit("\tclra")
		g.emit("\tldab %d,x", offset)
		return
	}
	g.emit("\tldd %d,x", offset)
}

func (g *Generator) storeToX(t *Type, offset int) {
	if t.IsByte() {
		g.emit("\tstab %d,x", offset)
		return
	}
	g.emit("\tstd %d,x", offset)
}

// genLoad loads a named variable (local, parameter, or global) into D.
// Arrays yield their address (decay); parameters always occupy 16-bit
// cells, so a byte-typed parameter's value byte is the cell's low half.
func (g *Generator) genLoad(name string, t *Type) {
	if sl, ok := g.locals[name]; ok {
		if t.Kind == TArray {
			g.frameAddress(sl.offset)
			return
		}
		g.emit("\tldx ccfp")
		g.loadFromX(t, sl.offset)
		return
	}
	if sl, ok := g.params[name]; ok {
		off := sl.offset
		if t.IsByte() {
			off++
		}
		g.emit("\tldx ccfp")
		g.loadFromX(t, off)
		return
	}
	if t.Kind == TArray {
		g.emit("\tldd #%s", name)
		return
	}
	if t.IsByte() {
		g.emit("\tclra")
		g.emit("\tldab %s", name)
		return
	}
	g.emit("\tldd %s", name)
}

// frameAddress leaves ccfp+offset in D.
func (g *Generator) frameAddress(offset int) {
	g.emit("\tldd ccfp")
	if offset != 0 {
		g.emit("\taddd #%d", offset)
	}
}

// genAddress computes e's address, leaving it in D.
func (g *Generator) genAddress(e Expr) {
	switch n := e.(type) {
	case *Ident:
		if sl, ok := g.locals[n.Name]; ok {
			g.frameAddress(sl.offset)
			return
		}
		if sl, ok := g.params[n.Name]; ok {
			off := sl.offset
			if n.Type != nil && n.Type.IsByte() {
				off++
			}
			g.frameAddress(off)
			return
		}
		g.emit("\tldd #%s", n.Name)
	case *IndexExpr:
		base := n.X.ExprType()
		var elem *Type
		if base.Kind == TArray {
			g.genAddress(n.X)
			elem = base.Elem
		} else {
			g.genExpr(n.X)
			elem = base.Elem
		}
		tmp := g.nextTemp()
		g.emit("\tstd %s", tmp)
		g.genExpr(n.Index)
		sz := elem.Size()
		if sz != 1 {
			szTmp := g.nextTemp()
			g.emit("\tstd %s", szTmp)
			g.emit("\tldd #%d", sz)
			g.emit("\tldx #%s", szTmp)
			g.emit("\tjsr ccmul16")
			g.usesMul = true
			g.releaseTemp()
		}
		g.emit("\taddd %s", tmp)
		g.releaseTemp()
	case *MemberExpr:
		if n.Arrow {
			g.genExpr(n.X)
		} else {
			g.genAddress(n.X)
		}
		base := n.X.ExprType()
		if n.Arrow {
			base = base.Elem
		}
		for _, f := range base.Struct.Fields {
			if f.Name == n.Field {
				g.emit("\taddd #%d", f.Offset)
				break
			}
		}
	case *DerefExpr:
		g.genExpr(n.X)
	default:
		g.genExpr(e)
	}
}

// genAssignTo is a helper used for local initializers, identical to a
// plain '=' AssignExpr but targeting a bare identifier.
func (g *Generator) genAssignTo(target *Ident, value Expr) {
	g.genExpr(value)
	g.storeIdent(target.Name, resolveLocalOrParamType(g, target.Name))
}

func resolveLocalOrParamType(g *Generator, name string) *Type {
	if sl, ok := g.locals[name]; ok {
		return sl.typ
	}
	if sl, ok := g.params[name]; ok {
		return sl.typ
	}
	return IntType
}

func (g *Generator) storeIdent(name string, t *Type) {
	if sl, ok := g.locals[name]; ok {
		g.emit("\tldx ccfp")
		g.storeToX(t, sl.offset)
		return
	}
	if sl, ok := g.params[name]; ok {
		off := sl.offset
		if t.IsByte() {
			off++
		}
		g.emit("\tldx ccfp")
		g.storeToX(t, off)
		return
	}
	if t.IsByte() {
		g.emit("\tstab %s", name)
		return
	}
	g.emit("\tstd %s", name)
}

func (g *Generator) genAssign(n *AssignExpr) {
	op := strings.TrimSuffix(n.Op, "=")
	if op != "" {
		g.genExpr(&BinaryExpr{exprBase: exprBase{Type: n.Type, Pos: n.Pos}, Op: op, L: n.L, R: n.R})
	} else {
		g.genExpr(n.R)
	}
	g.storeTo(n.L)
}

// storeTo stores D into the lvalue e names.
func (g *Generator) storeTo(e Expr) {
	switch n := e.(type) {
	case *Ident:
		g.storeIdent(n.Name, n.Type)
	default:
		tmp := g.nextTemp()
		g.emit("\tstd %s", tmp)
		g.genAddress(e)
		g.emit("\txgdx")
		g.emit("\tldd %s", tmp)
		g.storeToX(e.ExprType(), 0)
		g.releaseTemp()
	}
}

func (g *Generator) genIncDec(n *IncDecExpr) {
	delta := 1
	if t := n.X.ExprType(); t != nil && t.Kind == TPointer {
		delta = t.Elem.Size()
	}
	if n.Op == "--" {
		delta = -delta
	}
	if n.Post {
		g.genExpr(n.X)
		tmp := g.nextTemp()
		g.emit("\tstd %s", tmp)
		g.emit("\taddd #%d", delta)
		g.storeTo(n.X)
		g.emit("\tldd %s", tmp)
		g.releaseTemp()
		return
	}
	g.genExpr(n.X)
	g.emit("\taddd #%d", delta)
	g.storeTo(n.X)
}

// genBinary lowers a binary expression using a memory scratch cell to
// hold the left operand while the right is evaluated.
// 8-bit op selection applies the
// accumulator-B-only instruction forms whenever both operands are
// char-width.
func (g *Generator) genBinary(n *BinaryExpr) {
	switch n.Op {
	case "&&", "||", "==", "!=", "<", ">", "<=", ">=":
		g.genCompareValue(n)
		return
	}
	if v, ok := foldConst(n); ok {
		g.emit("\tldd #%d", uint16(v))
		return
	}
	if shift, ok := powerOfTwoShift(n); ok {
		g.genExpr(n.L)
		for i := 0; i < shift.count; i++ {
			g.emit("\t%s", shift.op)
		}
		return
	}

	left, right := n.L, n.R
	if n.Op == "+" || n.Op == "-" {
		left, right = scalePointerOperands(n)
	}

	byteOp := n.Type.IsByte()
	tmp := g.nextTemp()
	g.genExpr(right)
	g.emit("\tstd %s", tmp)
	g.genExpr(left)
	switch n.Op {
	case "+":
		if byteOp {
			g.emit("\taddb %s+1", tmp)
		} else {
			g.emit("\taddd %s", tmp)
		}
	case "-":
		if byteOp {
			g.emit("\tsubb %s+1", tmp)
		} else {
			g.emit("\tsubd %s", tmp)
		}
	case "&":
		if byteOp {
			g.emit("\tandb %s+1", tmp)
		} else {
			g.emit("\tanda %s", tmp)
			g.emit("\tandb %s+1", tmp)
		}
	case "|":
		if byteOp {
			g.emit("\torab %s+1", tmp)
		} else {
			g.emit("\toraa %s", tmp)
			g.emit("\torab %s+1", tmp)
		}
	case "^":
		if byteOp {
			g.emit("\teorb %s+1", tmp)
		} else {
			g.emit("\teora %s", tmp)
			g.emit("\teorb %s+1", tmp)
		}
	case "*":
		g.emit("\tldx #%s", tmp)
		g.emit("\tjsr ccmul16")
		g.usesMul = true
	case "/":
		g.emit("\tldx #%s", tmp)
		g.emit("\tjsr ccdiv16")
		g.usesDivOp = true
	case "%":
		g.emit("\tldx #%s", tmp)
		g.emit("\tjsr ccmod16")
		g.usesDivOp = true
	case "<<":
		g.emit("\tldx #%s", tmp)
		g.emit("\tjsr ccshl")
		g.usesShift = true
	case ">>":
		g.emit("\tldx #%s", tmp)
		g.emit("\tjsr ccshr")
		g.usesShift = true
	}
	g.releaseTemp()
}

// scalePointerOperands multiplies the integer side of pointer +/- by the
// pointee size, so pointer arithmetic advances in elements. The synthetic
// multiply folds to a shift for power-of-two element sizes.
func scalePointerOperands(n *BinaryExpr) (Expr, Expr) {
	left, right := n.L, n.R
	scale := func(e Expr, size int) Expr {
		return &BinaryExpr{
			exprBase: exprBase{Type: IntType, Pos: e.ExprPos()},
			Op:       "*",
			L:        e,
			R:        &IntLit{exprBase: exprBase{Type: IntType, Pos: e.ExprPos()}, Value: int64(size)},
		}
	}
	lt, rt := left.ExprType(), right.ExprType()
	if lt != nil && (lt.Kind == TPointer || lt.Kind == TArray) && rt != nil && rt.IsInteger() {
		if sz := lt.Decayed().Elem.Size(); sz > 1 {
			right = scale(right, sz)
		}
	} else if rt != nil && (rt.Kind == TPointer || rt.Kind == TArray) && lt != nil && lt.IsInteger() && n.Op == "+" {
		if sz := rt.Decayed().Elem.Size(); sz > 1 {
			left = scale(left, sz)
		}
	}
	return left, right
}

type shiftInfo struct {
	op    string
	count int
}

// powerOfTwoShift implements the power-of-two
// strength reduction: multiply/divide by a compile-time power of two
// lowers to a shift sequence instead of a jsr to the software multiply/
// divide routine.
func powerOfTwoShift(n *BinaryExpr) (shiftInfo, bool) {
	if n.Op != "*" && n.Op != "/" {
		return shiftInfo{}, false
	}
	v, ok := foldConst(n.R)
	if !ok || v <= 0 {
		return shiftInfo{}, false
	}
	count := 0
	for x := v; x > 1; x >>= 1 {
		if x&1 != 0 {
			return shiftInfo{}, false
		}
		count++
	}
	if v == 1 {
		return shiftInfo{}, false
	}
	op := "asld"
	if n.Op == "/" {
		op = "lsrd"
	}
	return shiftInfo{op: op, count: count}, true
}

// genCompareValue evaluates a comparison or logical expression to a 0/1
// integer value (used where the result is needed as a value rather than
// as a branch condition, e.g. "x = a < b").
func (g *Generator) genCompareValue(n *BinaryExpr) {
	trueLbl := g.label("cmptrue")
	end := g.label("cmpend")
	g.genBranchIfTrue(n, trueLbl)
	g.emit("\tldd #0")
	g.emit("\tbra %s", end)
	g.emit("%s", trueLbl)
	g.emit("\tldd #1")
	g.emit("%s", end)
}

// genCall marshals arguments and issues either a plain JSR (user/library
// function), an SWI-based service trap (runtime intrinsic or `external`
// procedure).
func (g *Generator) genCall(n *CallExpr) {
	if ef, ok := g.externs[n.Callee]; ok {
		g.genTrapCall(n.Args, ef.selector, ef.ret)
		return
	}
	if rt, ok := runtimeIntrinsics[n.Callee]; ok {
		g.genTrapCall(n.Args, rt.Selector, rt.Ret)
		return
	}
	g.saveFP()
	for i := len(n.Args) - 1; i >= 0; i-- {
		g.genExpr(n.Args[i])
		g.emit("\tpshb")
		g.emit("\tpsha")
	}
	g.emit("\tjsr %s", n.Callee)
	g.popArgsAndRestoreFP(len(n.Args))
}

// genTrapCall marshals up to four 16-bit arguments for a service trap:
// pushed right-to-left so argument 0 ends nearest the stack top, each
// word low-byte-then-high-byte (matching cpu.pushWord's own byte order),
// argc in B, then SWI followed by the one-byte selector.
func (g *Generator) genTrapCall(args []Expr, selector byte, ret *Type) {
	g.saveFP()
	for i := len(args) - 1; i >= 0; i-- {
		g.genExpr(args[i])
		g.emit("\tpshb")
		g.emit("\tpsha")
	}
	g.emit("\tldab #%d", len(args))
	g.emit("\tswi")
	g.emit("\tfcb %d", selector)
	g.popArgsAndRestoreFP(len(args))
	_ = ret
}

// saveFP preserves the caller's frame pointer and any live scratch words
// on the real hardware stack before a call: ccfp and the cct cells are
// single shared locations that the callee (or any call in its body)
// overwrites.
func (g *Generator) saveFP() {
	g.emit("\tldx ccfp")
	g.emit("\tpshx")
	for i := 0; i < g.tempSeq; i++ {
		g.emit("\tldx cct%d", i)
		g.emit("\tpshx")
	}
}

// popArgsAndRestoreFP drops the argCount pushed argument words (caller
// pops args) and restores the frame pointer saveFP
// preserved before the call.
func (g *Generator) popArgsAndRestoreFP(argCount int) {
	g.emit("\tstd ccret")
	if argCount > 0 {
		g.emit("\ttsx")
		g.emit("\tldab #%d", argCount*2)
		g.emit("\tabx")
		g.emit("\ttxs")
	}
	for i := g.tempSeq - 1; i >= 0; i-- {
		g.emit("\tpulx")
		g.emit("\tstx cct%d", i)
	}
	g.emit("\tpulx")
	g.emit("\tstx ccfp")
	g.emit("\tldd ccret")
}
