package cc

import "fmt"

// TypeKind tags one Type's variant.
type TypeKind int

const (
	TChar TypeKind = iota
	TUChar
	TInt
	TUInt
	TPointer
	TArray
	TStruct
	TVoid
	TFunc
)

// Type is the restricted dialect's type representation. Struct and
// function types carry extra fields; pointer/array carry an Elem.
type Type struct {
	Kind   TypeKind
	Elem   *Type       // TPointer, TArray
	Len    int         // TArray
	Struct *StructDef  // TStruct
	Ret    *Type       // TFunc
	Params []*Type     // TFunc
}

// StructDef is one struct tag's field layout.
type StructDef struct {
	Name   string
	Fields []Field
	Size   int
}

// Field is one struct member: its type and byte offset within the struct.
type Field struct {
	Name   string
	Type   *Type
	Offset int
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TChar:
		return "char"
	case TUChar:
		return "unsigned char"
	case TInt:
		return "int"
	case TUInt:
		return "unsigned int"
	case TVoid:
		return "void"
	case TPointer:
		return t.Elem.String() + " *"
	case TArray:
		return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
	case TStruct:
		return "struct " + t.Struct.Name
	case TFunc:
		return fmt.Sprintf("%s(...)", t.Ret)
	default:
		return "?"
	}
}

// Size returns a type's size in bytes on the target (pointers and ints are
// 16-bit cells; char is 1 byte; structs and arrays compute from their
// layout).
func (t *Type) Size() int {
	switch t.Kind {
	case TChar, TUChar:
		return 1
	case TInt, TUInt, TPointer:
		return 2
	case TArray:
		return t.Elem.Size() * t.Len
	case TStruct:
		return t.Struct.Size
	default:
		return 0
	}
}

// IsByte reports whether a value of this type occupies one byte and
// participates in 8-bit arithmetic selection.
func (t *Type) IsByte() bool { return t.Kind == TChar || t.Kind == TUChar }

// IsInteger reports whether arithmetic is directly defined on this type
// (char/uchar/int/uint; pointers participate only in +/- via scaling).
func (t *Type) IsInteger() bool {
	switch t.Kind {
	case TChar, TUChar, TInt, TUInt:
		return true
	default:
		return false
	}
}

// Decayed returns the pointer-to-element type an array decays to when
// passed as an argument or used in most expression contexts.
func (t *Type) Decayed() *Type {
	if t.Kind == TArray {
		return &Type{Kind: TPointer, Elem: t.Elem}
	}
	return t
}

// Equal reports structural type equality, treating an array and a pointer
// to the same element as equal (needed for extern/prototype matching:
// "char buf[]" matches "char *buf" matches "char buf[N]").
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	da, db := a.Decayed(), b.Decayed()
	if da.Kind != db.Kind {
		return false
	}
	switch da.Kind {
	case TPointer:
		return Equal(da.Elem, db.Elem)
	case TStruct:
		return da.Struct == db.Struct
	case TFunc:
		if !Equal(da.Ret, db.Ret) || len(da.Params) != len(db.Params) {
			return false
		}
		for i := range da.Params {
			if !Equal(da.Params[i], db.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

var (
	CharType  = &Type{Kind: TChar}
	UCharType = &Type{Kind: TUChar}
	IntType   = &Type{Kind: TInt}
	UIntType  = &Type{Kind: TUInt}
	VoidType  = &Type{Kind: TVoid}
)

// PointerTo builds a pointer-to-elem type.
func PointerTo(elem *Type) *Type { return &Type{Kind: TPointer, Elem: elem} }
