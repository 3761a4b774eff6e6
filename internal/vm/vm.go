package vm

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/host"
)

var errStackUnderflow = errors.New("stack underflow")
var errStackOverflow = errors.New("stack overflow")
var errTruncatedBytecode = errors.New("truncated bytecode")
var errInvalidConstantIndex = errors.New("invalid constant index")

// Initial sizes for stack and frames
const InitialStackSize = 1024
const InitialFrameCount = 64

// Growth increment when the stack needs to expand
const StackGrowthIncrement = 1024

// DefaultMaxFrames bounds the call depth so runaway recursion faults
// instead of exhausting memory.
const DefaultMaxFrames = 4096

// Maximum operand stack size to prevent OOM
const MaxStackSize = 1024 * 1024

// CallFrame is one activation of a method. Its locals occupy
// stack[base:base+MaxLocals] and its operands sit above them.
type CallFrame struct {
	module *moduleInstance
	method *Method
	sig    *methodSig
	ip     int
	base   int
	// boxResult makes the return push the result boxed, for calls made by
	// APPLY and by the VM itself.
	boxResult bool
}

// methodSig is the parsed descriptor of a method.
type methodSig struct {
	params []Repr
	result Repr
	words  int // stack words taken by the parameters
}

func newMethodSig(desc string) (*methodSig, error) {
	params, result, err := ParseDescriptor(desc)
	if err != nil {
		return nil, err
	}
	s := &methodSig{params: params, result: result}
	for _, p := range params {
		s.words += p.Width()
	}
	return s, nil
}

// moduleInstance is a loaded module artifact with its static fields.
type moduleInstance struct {
	art     *Artifact
	methods map[string]*Method
	sigs    map[*Method]*methodSig
	holders map[string]*Artifact
	fields  map[string]any

	// initialized is set before <clinit> runs so a module referring to its
	// own exports does not initialize twice.
	initialized bool
}

func newModuleInstance(art *Artifact) *moduleInstance {
	inst := &moduleInstance{
		art:     art,
		methods: make(map[string]*Method, len(art.Methods)),
		sigs:    make(map[*Method]*methodSig, len(art.Methods)),
		holders: make(map[string]*Artifact),
		fields:  make(map[string]any, len(art.Fields)),
	}
	for _, m := range art.Methods {
		inst.methods[m.Name] = m
	}
	return inst
}

func (inst *moduleInstance) sig(m *Method) (*methodSig, error) {
	if s, ok := inst.sigs[m]; ok {
		return s, nil
	}
	s, err := newMethodSig(m.Descriptor)
	if err != nil {
		return nil, faultf(FaultLink, "%s.%s: %v", inst.art.Name, m.Name, err)
	}
	inst.sigs[m] = s
	return s, nil
}

// Loader supplies the artifacts of modules that were not loaded explicitly.
type Loader interface {
	LoadArtifacts(module string) ([]*Artifact, error)
}

// VM executes module artifacts.
type VM struct {
	stack []Value
	sp    int

	frames     []CallFrame
	frameCount int
	frame      *CallFrame
	maxFrames  int

	modules map[string]*moduleInstance
	loader  Loader
	host    *host.Registry

	out io.Writer

	// Context for cancellation
	Context context.Context
}

type VMOption func(*VM)

// WithLoader lets the VM load imported modules on first use.
func WithLoader(l Loader) VMOption {
	return func(vm *VM) { vm.loader = l }
}

func WithRegistry(r *host.Registry) VMOption {
	return func(vm *VM) { vm.host = r }
}

func WithMaxFrames(n int) VMOption {
	return func(vm *VM) { vm.maxFrames = n }
}

// New creates a new VM instance
func New(opts ...VMOption) *VM {
	vm := &VM{
		stack:     make([]Value, InitialStackSize),
		frames:    make([]CallFrame, 0, InitialFrameCount),
		maxFrames: DefaultMaxFrames,
		modules:   make(map[string]*moduleInstance),
		out:       os.Stdout,
		Context:   context.Background(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.host == nil {
		vm.host = host.NewRegistry()
	}
	return vm
}

// SetOutput sets the writer print writes to.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetContext sets the context for cancellation
func (vm *VM) SetContext(ctx context.Context) {
	vm.Context = ctx
}

// Load registers the artifacts of one module: exactly one module artifact
// and the holder artifacts of its constructors. Loading a module again
// replaces it.
func (vm *VM) Load(arts []*Artifact) error {
	var inst *moduleInstance
	var holders []*Artifact
	for _, a := range arts {
		switch a.Kind {
		case KindModule:
			if inst != nil {
				return faultf(FaultLink, "artifacts of %s and %s loaded together", inst.art.Name, a.Name)
			}
			inst = newModuleInstance(a)
		case KindHolder:
			holders = append(holders, a)
		}
	}
	if inst == nil {
		return faultf(FaultLink, "no module artifact to load")
	}
	for _, h := range holders {
		inst.holders[h.Name] = h
	}
	vm.modules[inst.art.Name] = inst
	return nil
}

// module returns a loaded and initialized module, loading it first if a
// Loader is set.
func (vm *VM) module(name string) (*moduleInstance, error) {
	inst, ok := vm.modules[name]
	if !ok {
		if vm.loader == nil {
			return nil, faultf(FaultLink, "module %s is not loaded", name)
		}
		arts, err := vm.loader.LoadArtifacts(name)
		if err != nil {
			return nil, &Fault{Kind: FaultLink, Msg: "loading module " + name, Cause: err}
		}
		if err := vm.Load(arts); err != nil {
			return nil, err
		}
		inst = vm.modules[name]
	}
	if err := vm.initialize(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (vm *VM) initialize(inst *moduleInstance) error {
	if inst.initialized {
		return nil
	}
	inst.initialized = true
	clinit, ok := inst.methods[config.InitializerMethodName]
	if !ok {
		return nil
	}
	_, err := vm.invoke(inst, clinit, nil)
	return err
}

// Run initializes a loaded module and executes its main expression,
// returning the boxed result. A module without main returns Unit.
func (vm *VM) Run(ctx context.Context, module string) (any, error) {
	if ctx != nil {
		vm.Context = ctx
	}
	inst, err := vm.module(module)
	if err != nil {
		return nil, err
	}
	entry, ok := inst.methods[config.EntryMethodName]
	if !ok {
		return Unit, nil
	}
	return vm.invoke(inst, entry, nil)
}

// Field returns the boxed value of a module's top-level value.
func (vm *VM) Field(module, name string) (any, error) {
	inst, err := vm.module(module)
	if err != nil {
		return nil, err
	}
	v, ok := inst.fields[name]
	if !ok {
		return nil, faultf(FaultLink, "%s has no field %s", module, name)
	}
	return v, nil
}

// Call invokes a method of a loaded module with boxed arguments and returns
// its boxed result.
func (vm *VM) Call(ctx context.Context, module, method string, args ...any) (any, error) {
	if ctx != nil {
		vm.Context = ctx
	}
	inst, err := vm.module(module)
	if err != nil {
		return nil, err
	}
	m, ok := inst.methods[method]
	if !ok {
		return nil, faultf(FaultLink, "%s has no method %s", module, method)
	}
	return vm.invoke(inst, m, args)
}

// invoke runs a method to completion from Go, nested inside whatever the
// VM is already executing.
func (vm *VM) invoke(inst *moduleInstance, m *Method, args []any) (result any, err error) {
	sig, err := inst.sig(m)
	if err != nil {
		return nil, err
	}
	if len(args) != len(sig.params) {
		return nil, faultf(FaultLink, "%s.%s takes %d arguments, got %d", inst.art.Name, m.Name, len(sig.params), len(args))
	}
	stop := vm.frameCount
	sp := vm.sp
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok || !(errors.Is(e, errStackOverflow) || errors.Is(e, errStackUnderflow) ||
				errors.Is(e, errTruncatedBytecode) || errors.Is(e, errInvalidConstantIndex)) {
				panic(r)
			}
			err = vm.fault(&Fault{Kind: FaultLink, Msg: e.Error()})
		}
		if err != nil {
			vm.unwind(stop, sp)
		}
	}()
	for i, a := range args {
		if err := vm.pushBoxed(sig.params[i], a); err != nil {
			return nil, err
		}
	}
	if err := vm.pushFrame(inst, m, sig, true); err != nil {
		return nil, err
	}
	if err := vm.execute(stop); err != nil {
		return nil, err
	}
	return vm.pop().Obj, nil
}

// unwind drops the frames and operands above a failed nested call.
func (vm *VM) unwind(frames, sp int) {
	vm.frameCount = frames
	vm.frames = vm.frames[:frames]
	vm.sp = sp
	if frames > 0 {
		vm.frame = &vm.frames[frames-1]
	} else {
		vm.frame = nil
	}
}

// pushFrame enters m with its arguments already on the stack.
func (vm *VM) pushFrame(inst *moduleInstance, m *Method, sig *methodSig, boxResult bool) error {
	if vm.frameCount >= vm.maxFrames {
		return vm.fault(faultf(FaultStackDepth, "more than %d nested calls", vm.maxFrames))
	}
	base := vm.sp - sig.words
	if base < 0 {
		panic(errStackUnderflow)
	}
	for vm.sp < base+m.MaxLocals {
		vm.push(Value{})
	}
	vm.frames = append(vm.frames, CallFrame{module: inst, method: m, sig: sig, base: base, boxResult: boxResult})
	vm.frameCount++
	vm.frame = &vm.frames[vm.frameCount-1]
	return nil
}

// execute is the main interpreter loop. It returns once the frame count
// drops back to stop.
func (vm *VM) execute(stop int) error {
	// Instruction counter for periodic context checks
	opsSinceCheck := 0
	const checkInterval = 1000

	for vm.frameCount > stop {
		opsSinceCheck++
		if opsSinceCheck >= checkInterval {
			opsSinceCheck = 0
			if vm.Context != nil {
				select {
				case <-vm.Context.Done():
					return vm.Context.Err()
				default:
				}
			}
		}
		code := vm.frame.method.Code
		if vm.frame.ip >= len(code) {
			return vm.fault(faultf(FaultLink, "fell off the end of the method"))
		}
		op := Opcode(code[vm.frame.ip])
		vm.frame.ip++
		if err := vm.executeOneOp(op); err != nil {
			return vm.fault(err)
		}
	}
	return nil
}

// returnFrom leaves the current frame, moving its result of representation
// r down to the frame's base.
func (vm *VM) returnFrom(r Repr) {
	frame := vm.frame
	words := make([]Value, r.Width())
	for i := len(words) - 1; i >= 0; i-- {
		words[i] = vm.pop()
	}
	vm.sp = frame.base
	vm.frameCount--
	vm.frames = vm.frames[:vm.frameCount]
	if vm.frameCount > 0 {
		vm.frame = &vm.frames[vm.frameCount-1]
	} else {
		vm.frame = nil
	}
	if frame.boxResult {
		vm.push(ObjVal(box(r, words)))
		return
	}
	for _, w := range words {
		vm.push(w)
	}
}

// fault locates err at the current instruction if it is a Fault without a
// location.
func (vm *VM) fault(err error) error {
	var f *Fault
	if !errors.As(err, &f) || f.Method != "" || vm.frame == nil {
		return err
	}
	f.Method = vm.frame.module.art.Name + "." + vm.frame.method.Name
	if ip := vm.frame.ip - 1; ip >= 0 && ip < len(vm.frame.method.Lines) {
		f.Line = vm.frame.method.Lines[ip]
	}
	return f
}

// Stack operations
func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		if vm.sp >= MaxStackSize {
			panic(errStackOverflow)
		}
		growBy := StackGrowthIncrement
		if len(vm.stack) > growBy {
			growBy = len(vm.stack)
		}
		newStack := make([]Value, len(vm.stack)+growBy)
		copy(newStack, vm.stack[:vm.sp])
		vm.stack = newStack
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	if vm.sp <= 0 {
		panic(errStackUnderflow)
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) pushDouble(f float64) {
	hi, lo := DoubleWords(f)
	vm.push(hi)
	vm.push(lo)
}

func (vm *VM) popDouble() float64 {
	vm.pop()
	return vm.pop().AsFloat()
}

// pushBoxed unboxes v as r onto the stack.
func (vm *VM) pushBoxed(r Repr, v any) error {
	var buf [2]Value
	words, err := unbox(r, v, buf[:0])
	if err != nil {
		return err
	}
	for _, w := range words {
		vm.push(w)
	}
	return nil
}

// popBoxed pops a value of representation r and boxes it.
func (vm *VM) popBoxed(r Repr) any {
	switch r.Width() {
	case 0:
		return Unit
	case 2:
		return vm.popDouble()
	}
	return box(r, []Value{vm.pop()})
}

// Read helpers
func (vm *VM) readByte() byte {
	if vm.frame.ip >= len(vm.frame.method.Code) {
		panic(errTruncatedBytecode)
	}
	b := vm.frame.method.Code[vm.frame.ip]
	vm.frame.ip++
	return b
}

func (vm *VM) readU16() int {
	high := vm.readByte()
	low := vm.readByte()
	return int(high)<<8 | int(low)
}

func (vm *VM) readConstant() Constant {
	idx := vm.readU16()
	consts := vm.frame.module.art.Constants
	if idx >= len(consts) {
		panic(errInvalidConstantIndex)
	}
	return consts[idx]
}

func (vm *VM) readJumpOffset() int {
	return vm.readU16()
}
