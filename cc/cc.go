package cc

import (
	"fmt"
	"strings"

	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/machine"
)

// Source is one input file handed to CompileMulti: its name (used in
// diagnostics and as the #include-relative base) and text.
type Source struct {
	Name string
	Text string
}

// CompileOptions configures a multi-file compilation.
type CompileOptions struct {
	// Predefined seeds the preprocessor's macro table before any file is
	// read, the way build.CompileC wires machine.Model.Defines() in.
	Predefined map[string]string
	// Includer resolves #include directives; build.go supplies the
	// filesystem-backed implementation.
	Includer Includer
	// ExtraAssembly holds standalone assembly sources to concatenate
	// between the library objects and the main object, in the order given.
	ExtraAssembly []string
}

// Result is everything CompileMulti produces: the concatenated assembly
// text ready for asm.Assemble, the label asm.Options.EntrySymbol should
// name, and any diagnostics collected across every phase and file.
type Result struct {
	Assembly    string
	EntrySymbol string
	Bundle      *diag.Bundle
}

// unit bundles one source file's result through every front-end phase.
type unit struct {
	src     Source
	tu      *TranslationUnit
	checked *CheckedUnit
	gen     *Generator
}

// CompileMulti compiles a set of translation units as one program: exactly
// one unit may define `main`; the rest compile in library mode. Cross-file `extern` declarations and function
// prototypes are checked for type agreement across every unit before
// assembly text is emitted, and `external` procedures sharing a name
// across units are assigned a single selector. Units are concatenated
// library units first (in the order given), then the unit defining
// `main` last, matching the single-symbol-table, concatenation-only
// linking model.
func CompileMulti(sources []Source, opts CompileOptions) Result {
	bundle := &diag.Bundle{}
	units := make([]*unit, 0, len(sources))

	for _, src := range sources {
		lx := newLexer(src.Text, src.Name, bundle)
		toks := lx.Tokens()
		pp := newPreprocessor(opts.Includer, opts.Predefined, bundle)
		expanded := pp.Process(toks, src.Name)
		tu := ParseFile(expanded, bundle)
		checked := Check(tu, bundle)
		units = append(units, &unit{src: src, tu: tu, checked: checked})
	}

	if bundle.HasErrors() {
		return Result{Bundle: bundle}
	}

	mainUnit := checkLinkage(units, bundle)
	if bundle.HasErrors() {
		return Result{Bundle: bundle}
	}

	externs := assignExternalSelectors(units)

	ordered := make([]*unit, 0, len(units))
	for _, u := range units {
		if u != mainUnit {
			ordered = append(ordered, u)
		}
	}
	if mainUnit != nil {
		ordered = append(ordered, mainUnit)
	}

	var libOut, mainOut strings.Builder
	maxTemp := 0
	usesMul, usesDiv, usesShift := false, false, false
	for i, u := range ordered {
		u.gen = NewGenerator(i, u.checked, externs, bundle)
		text, _ := u.gen.Generate()
		if u == mainUnit {
			mainOut.WriteString(text)
			mainOut.WriteByte('\n')
		} else {
			libOut.WriteString(text)
			libOut.WriteByte('\n')
		}
		if u.gen.maxTemp > maxTemp {
			maxTemp = u.gen.maxTemp
		}
		usesMul = usesMul || u.gen.usesMul
		usesDiv = usesDiv || u.gen.usesDivOp
		usesShift = usesShift || u.gen.usesShift
	}

	var prelude strings.Builder
	fmt.Fprintln(&prelude, "; shared runtime storage")
	fmt.Fprintln(&prelude, "ccfp rmb 2")
	fmt.Fprintln(&prelude, "ccret rmb 2")
	for i := 0; i < maxTemp; i++ {
		fmt.Fprintf(&prelude, "cct%d rmb 2\n", i)
	}
	if usesMul || usesDiv || usesShift {
		prelude.WriteString(runtimeHelpers(usesMul, usesDiv, usesShift))
	}

	var entry string
	var final strings.Builder
	final.WriteString(prelude.String())
	final.WriteString(libOut.String())
	for _, extra := range opts.ExtraAssembly {
		final.WriteString(extra)
		if !strings.HasSuffix(extra, "\n") {
			final.WriteByte('\n')
		}
	}
	final.WriteString(mainOut.String())
	if mainUnit != nil {
		entry = "start"
		fmt.Fprintln(&final, "start")
		fmt.Fprintln(&final, "\tlds #ccstack")
		if opts.Predefined["FOUR_LINE"] == "1" {
			// A 4-line build checks the display height before touching
			// anything else and parks quietly on a 2-line machine instead
			// of corrupting its screen.
			fmt.Fprintln(&final, "\tldab #0")
			fmt.Fprintln(&final, "\tswi")
			fmt.Fprintf(&final, "\tfcb %d\n", machine.SelectorDisplayRows)
			fmt.Fprintln(&final, "\tsubd #4")
			fmt.Fprintln(&final, "\tbeq geomok")
			fmt.Fprintln(&final, "geombad")
			fmt.Fprintln(&final, "\twai")
			fmt.Fprintln(&final, "\tbra geombad")
			fmt.Fprintln(&final, "geomok")
		}
		fmt.Fprintln(&final, "\tjsr main")
		fmt.Fprintln(&final, "halt")
		fmt.Fprintln(&final, "\tbra halt")
		fmt.Fprintln(&final, "ccstackarea rmb 128")
		fmt.Fprintln(&final, "ccstack equ ccstackarea+127")
	}

	return Result{Assembly: final.String(), EntrySymbol: entry, Bundle: bundle}
}

// checkLinkage enforces the cross-file rules: exactly
// one translation unit may define `main`; a function or non-extern global
// may have at most one defining unit; every declaration of a given name
// across units (function prototype, `extern` global, `external`
// procedure) must agree in type, with both conflicting positions reported
// on mismatch.
func checkLinkage(units []*unit, bundle *diag.Bundle) *unit {
	var mainUnit *unit
	funcSig := map[string]*Type{}
	funcSigPos := map[string]diag.Pos{}
	funcDefiner := map[string]string{}
	globalType := map[string]*Type{}
	globalTypePos := map[string]diag.Pos{}
	globalDefiner := map[string]string{}
	externSig := map[string]*Type{}
	externSigPos := map[string]diag.Pos{}

	for _, u := range units {
		if u.checked.HasMain {
			if mainUnit != nil {
				bundle.Errorf(u.tu.Decls[0].(interface{ declNode() }).(*FuncDecl).Pos,
					"translation unit %q also defines main, already defined in %q", u.src.Name, mainUnit.src.Name)
				continue
			}
			mainUnit = u
		}

		for _, d := range u.tu.Decls {
			switch n := d.(type) {
			case *FuncDecl:
				ft := &Type{Kind: TFunc, Ret: n.Ret, Params: paramTypes(n.Params)}
				if prev, ok := funcSig[n.Name]; ok && !Equal(prev, ft) {
					bundle.Errorf(n.Pos, "function %q declared with a different signature in %s", n.Name, u.src.Name)
					bundle.Add(diag.Diagnostic{Pos: funcSigPos[n.Name], Severity: diag.Note, Message: fmt.Sprintf("previous declaration of %q here", n.Name)})
				} else {
					funcSig[n.Name] = ft
					funcSigPos[n.Name] = n.Pos
				}
				if n.Body != nil {
					if prevFile, ok := funcDefiner[n.Name]; ok && prevFile != u.src.Name {
						bundle.Errorf(n.Pos, "function %q defined in both %s and %s", n.Name, prevFile, u.src.Name)
					}
					funcDefiner[n.Name] = u.src.Name
				}
			case *VarDecl:
				if prev, ok := globalType[n.Name]; ok && !Equal(prev, n.Type) {
					bundle.Errorf(n.Pos, "global %q declared with a different type in %s", n.Name, u.src.Name)
					bundle.Add(diag.Diagnostic{Pos: globalTypePos[n.Name], Severity: diag.Note, Message: fmt.Sprintf("previous declaration of %q here", n.Name)})
				} else {
					globalType[n.Name] = n.Type
					globalTypePos[n.Name] = n.Pos
				}
				if !n.IsExtern {
					if prevFile, ok := globalDefiner[n.Name]; ok && prevFile != u.src.Name {
						bundle.Errorf(n.Pos, "global %q defined in both %s and %s", n.Name, prevFile, u.src.Name)
					}
					globalDefiner[n.Name] = u.src.Name
				}
			case *ExternalDecl:
				et := &Type{Kind: TFunc, Ret: n.Ret, Params: paramTypes(n.Params)}
				if prev, ok := externSig[n.Name]; ok && !Equal(prev, et) {
					bundle.Errorf(n.Pos, "external %q declared with a different signature in %s", n.Name, u.src.Name)
					bundle.Add(diag.Diagnostic{Pos: externSigPos[n.Name], Severity: diag.Note, Message: fmt.Sprintf("previous declaration of %q here", n.Name)})
				} else {
					externSig[n.Name] = et
					externSigPos[n.Name] = n.Pos
				}
			}
		}
	}

	if mainUnit == nil {
		bundle.Add(diag.Diagnostic{Severity: diag.Error, Message: "no translation unit defines main"})
	}
	return mainUnit
}

// assignExternalSelectors assigns each distinct `external` procedure name
// (deduplicated across units) a selector starting at
// machine.FirstExternalSelector, in first-encountered order, so every
// generator's genTrapCall agrees on the same mapping.
func assignExternalSelectors(units []*unit) map[string]externFunc {
	result := map[string]externFunc{}
	var order []string
	for _, u := range units {
		for _, d := range u.tu.Decls {
			ed, ok := d.(*ExternalDecl)
			if !ok {
				continue
			}
			if _, seen := result[ed.Name]; seen {
				continue
			}
			result[ed.Name] = externFunc{ret: ed.Ret, nparams: len(ed.Params)}
			order = append(order, ed.Name)
		}
	}
	for i, name := range order {
		ef := result[name]
		ef.selector = byte(machine.FirstExternalSelector + i)
		result[name] = ef
	}
	return result
}

// runtimeHelpers emits the small software multiply/divide/modulo/shift
// library the generated code calls for operand values it cannot reduce to
// shifts. Each routine takes the left operand in D and a pointer to the
// 16-bit right operand in X, returning the result in D. The HD6303 has no
// hardware 16-bit multiply or divide, so these are the classic
// shift-and-add and restoring-division loops, with the bit counter in
// memory because both accumulators are busy with the running values.
func runtimeHelpers(usesMul, usesDiv, usesShift bool) string {
	var b strings.Builder
	if usesMul {
		b.WriteString(`
; ccmul16: D * (0,X) -> D, unsigned shift-and-add multiply.
ccmul16
	std ccmulopd
	clra
	clrb
	std ccmulacc
	ldaa #16
	staa ccmulcnt
ccmul16_loop
	lsr ccmulopd
	ror ccmulopd+1
	bcc ccmul16_skip
	ldd ccmulacc
	addd 0,x
	std ccmulacc
ccmul16_skip
	asl 1,x
	rol 0,x
	dec ccmulcnt
	bne ccmul16_loop
	ldd ccmulacc
	rts
ccmulopd rmb 2
ccmulacc rmb 2
ccmulcnt rmb 1
`)
	}
	if usesDiv {
		b.WriteString(`
; ccdiv16/ccmod16: D / (0,X) -> D; ccdivrem holds the remainder after
; ccdivcore, which is what ccmod16 returns. Restoring division, one
; quotient bit per pass.
ccdiv16
	jsr ccdivcore
	ldd ccdivquot
	rts
ccmod16
	jsr ccdivcore
	ldd ccdivrem
	rts
ccdivcore
	std ccdivnum
	clra
	clrb
	std ccdivrem
	std ccdivquot
	ldaa #16
	staa ccdivcnt
ccdivcore_loop
	asl ccdivnum+1
	rol ccdivnum
	rol ccdivrem+1
	rol ccdivrem
	asl ccdivquot+1
	rol ccdivquot
	ldd ccdivrem
	subd 0,x
	bcs ccdivcore_skip
	std ccdivrem
	inc ccdivquot+1
ccdivcore_skip
	dec ccdivcnt
	bne ccdivcore_loop
	rts
ccdivnum rmb 2
ccdivquot rmb 2
ccdivrem rmb 2
ccdivcnt rmb 1
`)
	}
	if usesShift {
		b.WriteString(`
; ccshl/ccshr: D shifted left/right by the count at (0,X) -> D.
ccshl
	ldx 0,x
ccshl_loop
	beq ccshl_done
	asld
	dex
	bra ccshl_loop
ccshl_done
	rts
ccshr
	ldx 0,x
ccshr_loop
	beq ccshr_done
	lsrd
	dex
	bra ccshr_loop
ccshr_done
	rts
`)
	}
	return b.String()
}
