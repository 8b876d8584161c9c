// Package build is the thin build-driver surface: it threads a source
// file through
// the C front-end and/or assembler, hands the result to the pack container,
// and wraps the emulator, so that cmd/orgc, cmd/orgasm, cmd/orgpack, and
// cmd/orgemu have nothing left to do but parse flags and call one function
// each.
package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/halcyon6303/orgtool/asm"
	"github.com/halcyon6303/orgtool/cc"
	"github.com/halcyon6303/orgtool/cpu"
	"github.com/halcyon6303/orgtool/diag"
	"github.com/halcyon6303/orgtool/machine"
	"github.com/halcyon6303/orgtool/pack"
	"github.com/halcyon6303/orgtool/peripherals/keyboard"
)

// fsIncluder resolves #include directives against a list of search
// directories, local includes first in the directory of the including
// file, then each of includePaths in order — the conventional C toolchain
// search order. System includes (<...>) skip the including file's
// directory. Assembler INCLUDE/INCBIN names go through fsInclude instead.
type fsIncluder struct {
	baseDir      string
	includePaths []string
}

func (f fsIncluder) Read(name string, system bool) (text, resolvedPath string, ok bool) {
	var dirs []string
	if !system {
		dirs = append(dirs, f.baseDir)
	}
	dirs = append(dirs, f.includePaths...)
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		b, err := os.ReadFile(p)
		if err == nil {
			return string(b), p, true
		}
	}
	return "", "", false
}

// CompileOptions configures CompileC.
type CompileOptions struct {
	TargetModel string
	Predefined  map[string]string
}

// CompileC implements `compile_c(source_path, include_paths, target_model,
// options) -> assembly_text | diagnostics`. It compiles a single
// translation unit; multi-file builds go through CompileMultiC.
func CompileC(sourcePath string, includePaths []string, targetModel string, opts CompileOptions) (string, *diag.Bundle) {
	text, err := os.ReadFile(sourcePath)
	if err != nil {
		b := &diag.Bundle{}
		b.Errorf(diag.Pos{File: sourcePath}, "read source: %v", err)
		return "", b
	}
	res := CompileMultiC([]cc.Source{{Name: sourcePath, Text: string(text)}}, includePaths, targetModel, opts)
	return res.Assembly, res.Bundle
}

// CompileMultiC implements the multi-file form of compile_c: exactly one of sources must define main; the rest compile in
// library mode. The returned assembly text already carries the entry label
// the first source file's directory is used as the base for local includes.
func CompileMultiC(sources []cc.Source, includePaths []string, targetModel string, opts CompileOptions) cc.Result {
	model, ok := machine.LookupModel(targetModel)
	if !ok {
		b := &diag.Bundle{}
		b.Errorf(diag.Pos{}, "unknown target model %q", targetModel)
		return cc.Result{Bundle: b}
	}

	predefined := model.Defines()
	for k, v := range opts.Predefined {
		predefined[k] = v
	}

	baseDir := "."
	if len(sources) > 0 {
		baseDir = filepath.Dir(sources[0].Name)
	}

	return cc.CompileMulti(sources, cc.CompileOptions{
		Predefined: predefined,
		Includer:   fsIncluder{baseDir: baseDir, includePaths: includePaths},
	})
}

// AssembleOptions configures Assemble.
type AssembleOptions struct {
	Relocatable   bool
	Optimize      bool
	WantListing   bool
	WantDebug     bool
	EntrySymbol   string
	ProcedureName string
	Form          asm.OutputForm
	Base          uint32
}

// AssembleResult bundles assemble's optional outputs alongside the object
// bytes that are the primary return value.
type AssembleResult struct {
	Object  *asm.Object
	Listing string
	Debug   string
}

// Assemble implements `assemble(assembly_text, include_paths, target_model,
// {relocatable, optimize, want_listing, want_debug}) -> object_bytes
// (+listing, +debug) | diagnostics`. The assembler's peephole pass always
// runs internally; the
// Optimize flag here controls nothing the assembler itself does not already
// guarantee and is not read, kept only to match the shape of the
// documented surface.
func Assemble(assemblyText string, includePaths []string, targetModel string, opts AssembleOptions) (*AssembleResult, *diag.Bundle) {
	model, ok := machine.LookupModel(targetModel)
	if !ok {
		b := &diag.Bundle{}
		b.Errorf(diag.Pos{}, "unknown target model %q", targetModel)
		return nil, b
	}

	defines := map[string]int64{}
	for k, v := range model.Defines() {
		defines[k] = parseDefineInt(v)
	}

	obj, bundle := asm.Assemble(assemblyText, asm.Options{
		Filename:      "input.asm",
		Base:          opts.Base,
		Defines:       defines,
		Form:          opts.Form,
		Relocatable:   opts.Relocatable,
		EntrySymbol:   opts.EntrySymbol,
		ProcedureName: opts.ProcedureName,
		Include:       fsInclude(includePaths),
	})
	if bundle.HasErrors() {
		return nil, bundle
	}

	result := &AssembleResult{Object: obj}
	if opts.WantListing {
		result.Listing = buildListing(obj)
	}
	if opts.WantDebug {
		result.Debug = buildDebugSidecar(obj, targetModel, opts.Relocatable)
	}
	return result, bundle
}

func parseDefineInt(s string) int64 {
	var v int64
	neg := false
	i := 0
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	return v
}

// buildListing renders the text listing form: address, emitted bytes, and
// the disassembled source line. The assembler's public Object does not
// retain the original source text, so the disassembly of the emitted bytes
// stands in for it; a linear sweep through data regions falls back to a
// hex line per byte.
func buildListing(obj *asm.Object) string {
	lines, err := asm.Disassemble(obj.Code, obj.Base)
	if err == nil {
		return asm.Listing(lines)
	}
	var b strings.Builder
	for i, v := range obj.Code {
		fmt.Fprintf(&b, "%04X: %02X\n", obj.Base+uint32(i), v)
	}
	return b.String()
}

// buildDebugSidecar renders the text debug sidecar: a key/value preamble,
// a symbol section (one line per symbol: name, address, kind, source
// position), an address-to-source-line section, and the fixup offsets.
func buildDebugSidecar(obj *asm.Object, model string, relocatable bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "version: 1\n")
	fmt.Fprintf(&b, "target: %s\n", model)
	fmt.Fprintf(&b, "origin: %#04x\n", obj.Base)
	fmt.Fprintf(&b, "relocatable: %t\n", relocatable)
	fmt.Fprintf(&b, "entry: %#04x\n", obj.Entry)
	fmt.Fprintln(&b, "[symbols]")
	for _, s := range obj.Symbols {
		fmt.Fprintf(&b, "%s %#04x %s %s\n", s.Name, uint16(s.Value), s.Kind, s.DefinedAt)
	}
	fmt.Fprintln(&b, "[lines]")
	for _, l := range obj.SourceLines {
		fmt.Fprintf(&b, "%#04x %s\n", l.Address, l.Pos)
	}
	fmt.Fprintln(&b, "[fixups]")
	for _, off := range obj.Fixups {
		fmt.Fprintf(&b, "%#04x\n", off)
	}
	return b.String()
}

// fsInclude resolves assembler INCLUDE/INCBIN names against the current
// directory followed by each search path, the same order fsIncluder uses
// for C includes.
func fsInclude(includePaths []string) asm.IncludeFunc {
	dirs := append([]string{"."}, includePaths...)
	return func(name string) ([]byte, bool) {
		for _, dir := range dirs {
			b, err := os.ReadFile(filepath.Join(dir, name))
			if err == nil {
				return b, true
			}
		}
		return nil, false
	}
}

// BuildProgram compiles a mixed set of C and standalone assembly sources
// into one assembly stream, concatenated deterministically: library
// objects, then assembly objects, then the main object with its entry
// point and runtime.
func BuildProgram(cSources []cc.Source, asmSources []string, includePaths []string, targetModel string, opts CompileOptions) cc.Result {
	model, ok := machine.LookupModel(targetModel)
	if !ok {
		b := &diag.Bundle{}
		b.Errorf(diag.Pos{}, "unknown target model %q", targetModel)
		return cc.Result{Bundle: b}
	}
	predefined := model.Defines()
	for k, v := range opts.Predefined {
		predefined[k] = v
	}
	baseDir := "."
	if len(cSources) > 0 {
		baseDir = filepath.Dir(cSources[0].Name)
	}
	return cc.CompileMulti(cSources, cc.CompileOptions{
		Predefined:    predefined,
		Includer:      fsIncluder{baseDir: baseDir, includePaths: includePaths},
		ExtraAssembly: asmSources,
	})
}

// PackCreate implements `pack_create(records[], size_class, type) ->
// pack_bytes | diagnostics`. The record type travels on each pack.Record
// the caller supplies; this wrapper's job is only to stamp a creation
// timestamp and
// surface pack.Create's plain error as a diagnostic bundle, matching every
// other build-driver entry point's return convention.
func PackCreate(records []pack.Record, size pack.SizeClass) ([]byte, *diag.Bundle) {
	img, err := pack.Create(records, size, time.Now())
	if err != nil {
		b := &diag.Bundle{}
		b.Errorf(diag.Pos{}, "%v", err)
		return nil, b
	}
	return img, nil
}

// PackInspect implements `pack_inspect(pack_bytes) -> directory`.
func PackInspect(packBytes []byte) (pack.Directory, *diag.Bundle) {
	dir, err := pack.Inspect(packBytes)
	if err != nil {
		b := &diag.Bundle{}
		b.Errorf(diag.Pos{}, "%v", err)
		return nil, b
	}
	return dir, nil
}

// PackExtract implements `pack_extract(pack_bytes, record_name) ->
// payload_bytes`.
func PackExtract(packBytes []byte, recordName string) ([]byte, *diag.Bundle) {
	payload, err := pack.Extract(packBytes, recordName)
	if err != nil {
		b := &diag.Bundle{}
		b.Errorf(diag.Pos{}, "%v", err)
		return nil, b
	}
	return payload, nil
}

// Emulator wraps a machine.Machine behind the build-driver verb set
// (emulator_new/emulator_load_pack/emulator_reset/emulator_run/
// emulator_tap_key/emulator_display_text), so cmd/orgemu calls these
// methods instead of reaching into the machine package directly.
type Emulator struct {
	m *machine.Machine
}

// NewEmulator implements `emulator_new(model) -> handle`.
func NewEmulator(modelName string, externals map[byte]machine.ExternalFunc) (*Emulator, error) {
	model, ok := machine.LookupModel(modelName)
	if !ok {
		return nil, fmt.Errorf("unknown target model %q", modelName)
	}
	return &Emulator{m: machine.New(model, externals)}, nil
}

// LoadROM installs the device ROM image the emulator boots; Reset and
// Run mean nothing before a ROM is present.
func (e *Emulator) LoadROM(img []byte) { e.m.LoadROM(img) }

// LoadPack implements `emulator_load_pack(handle, pack_bytes, slot)`.
func (e *Emulator) LoadPack(packBytes []byte, slot int) error {
	return e.m.LoadPack(slot, packBytes)
}

// Reset implements `emulator_reset(handle)`.
func (e *Emulator) Reset() { e.m.Reset() }

// Run implements `emulator_run(handle, cycles) -> actually_run`.
func (e *Emulator) Run(cycles uint64) (uint64, cpu.Status) { return e.m.Run(cycles) }

// TapKey implements `emulator_tap_key(handle, key, hold_cycles)`.
func (e *Emulator) TapKey(key keyboard.Key, holdCycles uint64) { e.m.TapKey(key, holdCycles) }

// DisplayText implements `emulator_display_text(handle) -> rows[]`.
func (e *Emulator) DisplayText() []string { return e.m.DisplayText() }

// Machine exposes the underlying machine.Machine for callers (like
// cmd/orgemu's pixel-rendering subcommand) that need peripherals build.go
// doesn't wrap one-for-one, such as the LCD's pixel view.
func (e *Emulator) Machine() *machine.Machine { return e.m }
