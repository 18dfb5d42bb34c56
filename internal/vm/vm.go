// Package vm is the bytecode interpreter: one value stack, bounded frame,
// iterator and handler stacks, and the adaptive layer (inline caches, loop
// superinstructions, peephole tiers, native kernels) on top.
package vm

import (
	"bufio"
	"io"
	"os"

	"levython/internal/bytecode"
	"levython/internal/config"
	"levython/internal/errors"
	"levython/internal/jit"
	"levython/internal/object"
	"levython/internal/optimizer"
	"levython/internal/value"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("levython.vm")

// frame is one activation. Slot i of the function lives at stack[base+i];
// the callee value sits at stack[base-1].
type frame struct {
	fn    *object.FunctionObj // nil for the script
	info  *funcInfo
	chunk *bytecode.Chunk
	ci    *chunkInfo
	opt   *optimizer.Optimized // set while running a peephole version

	ip          int
	base        int
	iterBase    int
	handlerBase int
}

// handler is an active try block.
type handler struct {
	catchIP int
	sp      int
	frames  int
	iters   int

	chunk *bytecode.Chunk
	ci    *chunkInfo
	opt   *optimizer.Optimized
}

// funcInfo is the per-function state shared by every call site.
type funcInfo struct {
	fn      *object.FunctionObj
	profile *optimizer.CallProfile
	version *optimizer.Optimized

	native        *jit.Native
	nativeChecked bool
}

// chunkInfo is the per-chunk state: call-site caches and loop sites.
type chunkInfo struct {
	chunk  *bytecode.Chunk
	caches CacheTable
	loops  []*loopSite // indexed by the offset of the closing LOOP
}

// VM runs chunks produced by a compiler sharing its heap. A VM is not safe
// for concurrent use; independent VMs share nothing.
type VM struct {
	heap *object.Heap
	cfg  *config.Config
	log  commonlog.Logger

	RunID string

	stack    []value.Value
	sp       int
	frames   []frame
	fc       int
	iters    []iterator
	nIters   int
	handlers []handler
	hc       int

	globals map[value.Value]value.Value

	chunks map[*bytecode.Chunk]*chunkInfo
	funcs  map[*object.FunctionObj]*funcInfo

	opt *optimizer.Optimizer
	jit *jit.Cache

	out    io.Writer
	errOut io.Writer
	in     *bufio.Reader

	// last value written by SET_LOCAL or SET_GLOBAL; loop profiles classify it
	lastStore value.Value

	counters counters
}

type counters struct {
	instructions      uint64
	calls             uint64
	nativeCalls       uint64
	superinstructions uint64
	skipped           uint64
}

// Option configures a VM.
type Option func(*VM)

// WithOutput sets where say() writes.
func WithOutput(w io.Writer) Option { return func(vm *VM) { vm.out = w } }

// WithErrorOutput sets where diagnostics such as unimplemented opcodes go.
func WithErrorOutput(w io.Writer) Option { return func(vm *VM) { vm.errOut = w } }

// WithInput sets where ask() reads.
func WithInput(r io.Reader) Option {
	return func(vm *VM) { vm.in = bufio.NewReader(r) }
}

// New creates a VM over heap. A nil cfg means config.Default().
func New(heap *object.Heap, cfg *config.Config, opts ...Option) *VM {
	if cfg == nil {
		cfg = config.Default()
	}
	vm := &VM{
		heap:     heap,
		cfg:      cfg,
		RunID:    uuid.NewString(),
		stack:    make([]value.Value, cfg.VM.MaxStack),
		frames:   make([]frame, cfg.VM.MaxFrames),
		iters:    make([]iterator, cfg.VM.MaxIterators),
		handlers: make([]handler, cfg.VM.MaxHandlers),
		globals:  make(map[value.Value]value.Value),
		chunks:   make(map[*bytecode.Chunk]*chunkInfo),
		funcs:    make(map[*object.FunctionObj]*funcInfo),
		opt:      optimizer.New(cfg.Optimizer),
		jit:      jit.NewCache(cfg.JIT.Enabled),
		out:      os.Stdout,
		errOut:   os.Stderr,
	}
	for _, o := range opts {
		o(vm)
	}
	if vm.in == nil {
		vm.in = bufio.NewReader(os.Stdin)
	}
	vm.log = commonlog.NewKeyValueLogger(log, "run", vm.RunID)
	return vm
}

// Heap returns the heap the VM allocates in.
func (vm *VM) Heap() *object.Heap { return vm.heap }

// Run executes a script chunk and returns the value of its final RETURN.
// Runtime errors not caught by a try block and fatal errors end the run;
// the stacks are reset either way.
func (vm *VM) Run(chunk *bytecode.Chunk) (value.Value, error) {
	if vm.fc != 0 {
		return value.None, errors.New("vm: run already in progress")
	}
	vm.reset()
	// stack[0] stands in for the callee of the script frame
	vm.stack[0] = value.None
	vm.sp = 1

	fr := frame{chunk: chunk, base: 1}
	if v := vm.opt.Version(chunk); v != nil {
		fr.chunk, fr.opt = v.Code, v
	}
	fr.ci = vm.chunkInfo(fr.chunk)
	vm.frames[0] = fr
	vm.fc = 1
	vm.log.Debugf("run %s: %d bytes", chunk.Name, chunk.Len())
	return vm.execute(0)
}

// RunFunction calls a function value from Go and returns its result.
func (vm *VM) RunFunction(fn value.Value, args ...value.Value) (result value.Value, err error) {
	if vm.fc != 0 {
		return value.None, errors.New("vm: run already in progress")
	}
	vm.reset()
	defer func() {
		if r := recover(); r != nil {
			result, err = value.None, vm.recoverFatal(r)
		}
	}()
	vm.push(fn)
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.call(nil, 0, len(args)); err != nil {
		return value.None, err
	}
	if vm.fc == 0 {
		// answered without a frame (native kernel)
		return vm.pop(), nil
	}
	return vm.execute(0)
}

// Global returns the value bound to a global name.
func (vm *VM) Global(name string) (value.Value, bool) {
	v, ok := vm.globals[vm.heap.Intern(name)]
	return v, ok
}

// SetGlobal binds a global name.
func (vm *VM) SetGlobal(name string, v value.Value) {
	vm.globals[vm.heap.Intern(name)] = v
}

// Close releases the JIT's executable memory.
func (vm *VM) Close() error {
	return vm.jit.Close()
}

func (vm *VM) reset() {
	vm.sp, vm.fc, vm.nIters, vm.hc = 0, 0, 0, 0
}

func (vm *VM) chunkInfo(c *bytecode.Chunk) *chunkInfo {
	ci := vm.chunks[c]
	if ci == nil {
		ci = &chunkInfo{chunk: c, loops: make([]*loopSite, len(c.Code))}
		vm.chunks[c] = ci
	}
	return ci
}

func (vm *VM) funcInfo(fn *object.FunctionObj) *funcInfo {
	fi := vm.funcs[fn]
	if fi == nil {
		fi = &funcInfo{fn: fn, profile: vm.opt.Profiler.Call(fn)}
		vm.funcs[fn] = fi
	}
	return fi
}

// Stack operations. Overflow is a VM invariant violation and unwinds the
// dispatch loop through a panic that execute turns into a FatalError.

func (vm *VM) push(v value.Value) {
	if vm.sp >= len(vm.stack) {
		panic(fatalPanic{errors.NewFatalError("Stack overflow: value stack limit %d exceeded", len(vm.stack))})
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	if vm.sp == 0 {
		panic(fatalPanic{errors.NewFatalError("stack underflow")})
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

func readShort(code []byte, ip int) int {
	return int(code[ip])<<8 | int(code[ip+1])
}
