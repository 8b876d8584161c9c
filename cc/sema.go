package cc

import (
	"github.com/halcyon6303/orgtool/diag"
)

// scope is one lexical scope: a flat name table with a parent link, the
// way asm's SymbolTable chains local labels to their nearest preceding
// global (asm/symtab.go), generalised here to block-nested C scopes.
type scope struct {
	vars   map[string]*Type
	parent *scope
}

func newScope(parent *scope) *scope { return &scope{vars: map[string]*Type{}, parent: parent} }

func (s *scope) define(name string, t *Type) { s.vars[name] = t }

func (s *scope) lookup(name string) (*Type, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if t, ok := sc.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// CheckedUnit is a TranslationUnit annotated by Check: every Expr's Type is
// filled in, and global/function/external tables are indexed for codegen
// and for cross-file extern consistency checking.
type CheckedUnit struct {
	TU        *TranslationUnit
	Functions map[string]*FuncDecl
	Externals map[string]*ExternalDecl
	Globals   map[string]*VarDecl
	HasMain   bool
}

type checker struct {
	bundle    *diag.Bundle
	funcs     map[string]*FuncDecl
	externs   map[string]*ExternalDecl
	globals   map[string]*VarDecl
	curFunc   *FuncDecl
}

// Check runs the semantic pass over one parsed translation unit: identifier resolution, the 8-bit/16-bit typed-arithmetic rule,
// the 255-byte struct size limit, function-signature matching, and
// compile-time sizeof evaluation.
func Check(tu *TranslationUnit, bundle *diag.Bundle) *CheckedUnit {
	c := &checker{
		bundle:  bundle,
		funcs:   map[string]*FuncDecl{},
		externs: map[string]*ExternalDecl{},
		globals: map[string]*VarDecl{},
	}
	global := newScope(nil)

	for _, d := range tu.Decls {
		switch n := d.(type) {
		case *VarDecl:
			global.define(n.Name, n.Type)
			c.globals[n.Name] = n
		case *FuncDecl:
			if prev, ok := c.funcs[n.Name]; ok && prev.Body != nil && n.Body != nil {
				c.bundle.Errorf(n.Pos, "function %q redefined", n.Name)
			}
			c.funcs[n.Name] = n
			global.define(n.Name, &Type{Kind: TFunc, Ret: n.Ret, Params: paramTypes(n.Params)})
		case *ExternalDecl:
			if len(n.Name) > 8 {
				c.bundle.Errorf(n.Pos, "external procedure name %q is %d characters, exceeding the 8-character limit", n.Name, len(n.Name))
			}
			c.externs[n.Name] = n
		case *StructDeclNode, *TypedefDecl:
			// Type-only declarations; nothing to check beyond what the
			// parser already validated (struct size limit below).
		}
	}

	for _, d := range tu.Decls {
		if sd, ok := d.(*StructDeclNode); ok {
			if sd.Def.Size > 255 {
				c.bundle.Errorf(sd.Pos, "struct %q is %d bytes, exceeding the 255-byte limit", sd.Def.Name, sd.Def.Size)
			}
		}
		if vd, ok := d.(*VarDecl); ok && vd.Init != nil {
			c.checkExpr(vd.Init, global)
		}
	}

	hasMain := false
	for _, d := range tu.Decls {
		fd, ok := d.(*FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		if fd.Name == "main" {
			hasMain = true
		}
		c.checkFunc(fd, global)
	}

	return &CheckedUnit{TU: tu, Functions: c.funcs, Externals: c.externs, Globals: c.globals, HasMain: hasMain}
}

func paramTypes(params []Param) []*Type {
	out := make([]*Type, len(params))
	for i, p := range params {
		out[i] = p.Type.Decayed()
	}
	return out
}

func (c *checker) checkFunc(fd *FuncDecl, global *scope) {
	c.curFunc = fd
	fs := newScope(global)
	for _, p := range fd.Params {
		fs.define(p.Name, p.Type.Decayed())
	}
	c.checkBlock(fd.Body, fs)
	c.curFunc = nil
}

func (c *checker) checkBlock(b *BlockStmt, parent *scope) {
	s := newScope(parent)
	for _, local := range b.Locals {
		if local.Init != nil {
			c.checkExpr(local.Init, s)
		}
		s.define(local.Name, local.Type)
	}
	for _, st := range b.Stmts {
		c.checkStmt(st, s)
	}
}

func (c *checker) checkStmt(st Stmt, s *scope) {
	switch n := st.(type) {
	case *BlockStmt:
		c.checkBlock(n, s)
	case *IfStmt:
		c.checkExpr(n.Cond, s)
		c.checkStmt(n.Then, s)
		if n.Else != nil {
			c.checkStmt(n.Else, s)
		}
	case *WhileStmt:
		c.checkExpr(n.Cond, s)
		c.checkStmt(n.Body, s)
	case *DoWhileStmt:
		c.checkStmt(n.Body, s)
		c.checkExpr(n.Cond, s)
	case *ForStmt:
		inner := newScope(s)
		if n.Init != nil {
			c.checkStmt(n.Init, inner)
		}
		if n.Cond != nil {
			c.checkExpr(n.Cond, inner)
		}
		if n.Post != nil {
			c.checkExpr(n.Post, inner)
		}
		c.checkStmt(n.Body, inner)
	case *SwitchStmt:
		c.checkExpr(n.Tag, s)
		for _, cs := range n.Cases {
			for _, st2 := range cs.Body {
				c.checkStmt(st2, s)
			}
		}
	case *ReturnStmt:
		if n.Value != nil {
			c.checkExpr(n.Value, s)
		}
	case *LabelStmt:
		c.checkStmt(n.Stmt, s)
	case *ExprStmt:
		if n.X != nil {
			c.checkExpr(n.X, s)
		}
	case *BreakStmt, *ContinueStmt, *GotoStmt:
		// Leaf statements; nothing to resolve.
	}
}

// checkExpr resolves identifiers and fills in each node's Type, enforcing
// the typed 8-bit arithmetic rule for +, -, &, |, ^ (char+char->char;
// mixing an 8-bit and a 16-bit operand is reported as an error unless a
// cast makes the widths agree); mul/div/mod/shift always widen.
func (c *checker) checkExpr(e Expr, s *scope) {
	switch n := e.(type) {
	case *IntLit:
		n.SetType(IntType)
	case *CharLit:
		n.SetType(CharType)
	case *StringLit:
		n.SetType(PointerTo(CharType))
	case *Ident:
		t, ok := s.lookup(n.Name)
		if !ok {
			c.bundle.Errorf(n.Pos, "undeclared identifier %q", n.Name)
			n.SetType(IntType)
			return
		}
		n.SetType(t)
	case *UnaryExpr:
		c.checkExpr(n.X, s)
		if n.Op == "!" {
			n.SetType(IntType)
		} else {
			n.SetType(widen(n.X.ExprType()))
		}
	case *BinaryExpr:
		c.checkExpr(n.L, s)
		c.checkExpr(n.R, s)
		n.SetType(c.resultType(n.Op, n.L.ExprType(), n.R.ExprType(), n.Pos))
	case *AssignExpr:
		c.checkExpr(n.L, s)
		c.checkExpr(n.R, s)
		n.SetType(n.L.ExprType())
	case *IncDecExpr:
		c.checkExpr(n.X, s)
		n.SetType(n.X.ExprType())
	case *IndexExpr:
		c.checkExpr(n.X, s)
		c.checkExpr(n.Index, s)
		base := n.X.ExprType()
		if base != nil && (base.Kind == TArray || base.Kind == TPointer) {
			n.SetType(base.Elem)
		} else {
			c.bundle.Errorf(n.Pos, "cannot index non-pointer, non-array type %s", base)
			n.SetType(IntType)
		}
	case *MemberExpr:
		c.checkExpr(n.X, s)
		base := n.X.ExprType()
		if n.Arrow {
			if base != nil && base.Kind == TPointer {
				base = base.Elem
			} else {
				c.bundle.Errorf(n.Pos, "-> applied to a non-pointer type %s", base)
				n.SetType(IntType)
				return
			}
		}
		if base == nil || base.Kind != TStruct {
			c.bundle.Errorf(n.Pos, "member access on non-struct type %s", base)
			n.SetType(IntType)
			return
		}
		for _, f := range base.Struct.Fields {
			if f.Name == n.Field {
				n.SetType(f.Type)
				return
			}
		}
		c.bundle.Errorf(n.Pos, "struct %q has no field %q", base.Struct.Name, n.Field)
		n.SetType(IntType)
	case *AddrOfExpr:
		c.checkExpr(n.X, s)
		n.SetType(PointerTo(n.X.ExprType()))
	case *DerefExpr:
		c.checkExpr(n.X, s)
		base := n.X.ExprType()
		if base != nil && base.Kind == TPointer {
			n.SetType(base.Elem)
		} else {
			c.bundle.Errorf(n.Pos, "cannot dereference non-pointer type %s", base)
			n.SetType(IntType)
		}
	case *SizeofExpr:
		if n.OfExpr != nil {
			c.checkExpr(n.OfExpr, s)
		}
		n.SetType(IntType)
	case *CastExpr:
		c.checkExpr(n.X, s)
		// n.Type already set by the parser to the cast's target type.
	case *CallExpr:
		for _, a := range n.Args {
			c.checkExpr(a, s)
		}
		if fd, ok := c.funcs[n.Callee]; ok {
			n.SetType(fd.Ret)
			if len(n.Args) != len(fd.Params) {
				c.bundle.Errorf(n.Pos, "call to %q passes %d arguments, expected %d", n.Callee, len(n.Args), len(fd.Params))
			}
			return
		}
		if ed, ok := c.externs[n.Callee]; ok {
			n.SetType(ed.Ret)
			if len(n.Args) != len(ed.Params) {
				c.bundle.Errorf(n.Pos, "call to external %q passes %d arguments, expected %d", n.Callee, len(n.Args), len(ed.Params))
			}
			if len(ed.Params) > 4 {
				c.bundle.Errorf(n.Pos, "external %q declares %d parameters, exceeding the 4-argument trap limit", n.Callee, len(ed.Params))
			}
			return
		}
		if rt, ok := runtimeIntrinsics[n.Callee]; ok {
			n.SetType(rt.Ret)
			return
		}
		c.bundle.Errorf(n.Pos, "call to undeclared function %q", n.Callee)
		n.SetType(IntType)
	}
}

// widen returns t unchanged if it is already 16-bit, or the corresponding
// 16-bit type if it is a char/unsigned char.
func widen(t *Type) *Type {
	if t == nil {
		return IntType
	}
	switch t.Kind {
	case TChar:
		return IntType
	case TUChar:
		return UIntType
	default:
		return t
	}
}

// resultType implements the width rule: homogeneous
// char/uchar + - & | ^ stays 8-bit; everything else (including any pointer
// arithmetic, which this dialect treats as scaled 16-bit math) widens.
func (c *checker) resultType(op string, l, r *Type, pos diag.Pos) *Type {
	switch op {
	case "*", "/", "%", "<<", ">>":
		return widen(l)
	case "+", "-", "&", "|", "^":
		if l != nil && r != nil && l.IsByte() && r.IsByte() {
			if l.Kind == TUChar || r.Kind == TUChar {
				return UCharType
			}
			return CharType
		}
		if l != nil && (l.Kind == TPointer || l.Kind == TArray) {
			return l.Decayed()
		}
		if r != nil && (r.Kind == TPointer || r.Kind == TArray) {
			return r.Decayed()
		}
		if l != nil && r != nil && l.IsByte() != r.IsByte() {
			c.bundle.Errorf(pos, "operands of %q mix 8-bit and 16-bit widths (%s and %s); cast one side explicitly", op, l, r)
		}
		return widen(l)
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return IntType
	default:
		return widen(l)
	}
}

// runtimeIntrinsic describes one pre-registered runtime helper.
type runtimeIntrinsic struct {
	Ret      *Type
	Selector byte
}
