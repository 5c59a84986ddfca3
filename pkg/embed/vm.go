package dakka

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/jbpuryear/dakka/internal/vm"
	"github.com/sirupsen/logrus"
)

type (
	Value    = vm.Value
	Target   = vm.Target
	ThreadID = vm.ThreadID
)

// ErrNoResult is returned by Eval when the script slept or failed before
// returning.
var ErrNoResult = errors.New("script did not return in its first slice")

// Script is a compiled program, ready to run any number of times.
type Script struct {
	fn *vm.CompiledFunction
}

// Arity is the number of arguments declared with args.
func (s *Script) Arity() int {
	return s.fn.Arity
}

// Disassemble renders the bytecode of the script and every function in it.
func (s *Script) Disassemble() string {
	return vm.Disassemble(s.fn)
}

type settings struct {
	opts      vm.Options
	noNatives bool
}

// Option configures a VM at construction.
type Option func(*settings)

func WithLogger(l *logrus.Logger) Option {
	return func(s *settings) { s.opts.Logger = l }
}

// WithLimits caps the call depth and value stack of each thread.
func WithLimits(maxFrames, maxStack int) Option {
	return func(s *settings) {
		s.opts.MaxFrames = maxFrames
		s.opts.MaxStack = maxStack
	}
}

// WithDefaultType sets the type key used by a spawn that names none.
func WithDefaultType(key string) Option {
	return func(s *settings) { s.opts.DefaultType = key }
}

// WithDisassemble logs compiled bytecode at debug level.
func WithDisassemble() Option {
	return func(s *settings) { s.opts.Disassemble = true }
}

// WithoutDefaultNatives starts the VM with an empty global table.
func WithoutDefaultNatives() Option {
	return func(s *settings) { s.noNatives = true }
}

// VM wraps the Dakka scheduler and provides a high-level embedding API.
// Host objects may be any vm.Target or a pointer to a struct, which is
// adapted with a StructTarget.
type VM struct {
	sched       *vm.Scheduler
	marshaller  *Marshaller
	log         *logrus.Entry
	disassemble bool

	// Host objects with a live thread -> their adapter. Entries come and go
	// with the scheduler's bindings.
	targets map[interface{}]*StructTarget
}

// New creates a new Dakka VM instance.
func New(options ...Option) *VM {
	var s settings
	for _, o := range options {
		o(&s)
	}
	if s.opts.Logger == nil {
		s.opts.Logger = logrus.StandardLogger()
	}

	sched := vm.NewScheduler(s.opts)
	v := &VM{
		sched:       sched,
		marshaller:  NewMarshaller(),
		log:         s.opts.Logger.WithField("scheduler", sched.ID().String()),
		disassemble: s.opts.Disassemble,
		targets:     make(map[interface{}]*StructTarget),
	}
	sched.OnBind(v.bound)

	if !s.noNatives {
		for name, val := range DefaultNatives() {
			if err := v.Bind(name, val); err != nil {
				panic(fmt.Sprintf("default native %s: %v", name, err))
			}
		}
	}
	return v
}

// Bind registers a Go function or value as a global of every script.
// Functions are wrapped as natives; see Marshaller.
func (v *VM) Bind(name string, val interface{}) error {
	sv, err := v.marshaller.toValue(name, val)
	if err != nil {
		return fmt.Errorf("binding %s: %w", name, err)
	}
	if err := v.sched.AddNative(name, sv); err != nil {
		return err
	}
	v.log.WithField("name", name).Debug("bound native")
	return nil
}

// Get retrieves a global variable from the VM.
func (v *VM) Get(name string) (interface{}, error) {
	val, ok := v.sched.Global(name)
	if !ok {
		return nil, fmt.Errorf("variable '%s' not found", name)
	}
	return v.marshaller.FromValue(val, nil)
}

// AddType registers a spawnable type. newObject returns a vm.Target or a
// pointer to a struct.
func (v *VM) AddType(key string, newObject func() interface{}) error {
	return v.sched.AddType(key, func() (vm.Target, error) {
		return v.adapt(newObject())
	})
}

// Compile compiles src without running it.
func (v *VM) Compile(src string) (*Script, error) {
	fn, err := vm.CompileWithOptions(src, vm.CompileOptions{Disassemble: v.disassemble})
	if err != nil {
		return nil, err
	}
	return &Script{fn: fn}, nil
}

// Run starts script on a new thread bound to target, which may be nil.
// Any thread already bound to target is killed first.
func (v *VM) Run(script *Script, target interface{}, args ...interface{}) (ThreadID, error) {
	opts, err := v.runOptions(target, args)
	if err != nil {
		return 0, err
	}
	return v.sched.Run(script.fn, opts)
}

// RunFunc is Run with a callback receiving the script's return value once
// its thread finishes, possibly several updates later.
func (v *VM) RunFunc(script *Script, target interface{}, onReturn func(interface{}), args ...interface{}) (ThreadID, error) {
	opts, err := v.runOptions(target, args)
	if err != nil {
		return 0, err
	}
	opts.OnReturn = func(val vm.Value) {
		res, _ := v.marshaller.FromValue(val, nil)
		onReturn(res)
	}
	return v.sched.Run(script.fn, opts)
}

// RunString compiles and runs src. Compile errors also reach the error
// handler.
func (v *VM) RunString(src string, target interface{}, args ...interface{}) (ThreadID, error) {
	opts, err := v.runOptions(target, args)
	if err != nil {
		return 0, err
	}
	return v.sched.RunSource(src, opts)
}

// Spawn builds a new object of the registered type and starts script on
// it, as the spawn statement does.
func (v *VM) Spawn(script *Script, typeKey string, args ...interface{}) (ThreadID, error) {
	opts, err := v.runOptions(nil, args)
	if err != nil {
		return 0, err
	}
	opts.Type = typeKey
	return v.sched.Run(script.fn, opts)
}

// Eval runs src and returns its result, provided it returns without
// sleeping.
func (v *VM) Eval(src string, args ...interface{}) (interface{}, error) {
	opts, err := v.runOptions(nil, args)
	if err != nil {
		return nil, err
	}
	var (
		result   vm.Value
		returned bool
	)
	opts.OnReturn = func(val vm.Value) {
		result, returned = val, true
	}

	id, err := v.sched.RunSource(src, opts)
	if err != nil {
		return nil, err
	}
	if !returned {
		v.sched.Kill(id)
		return nil, ErrNoResult
	}
	return v.marshaller.FromValue(result, nil)
}

func (v *VM) runOptions(target interface{}, args []interface{}) (vm.RunOptions, error) {
	t, err := v.adapt(target)
	if err != nil {
		return vm.RunOptions{}, err
	}
	values := make([]vm.Value, len(args))
	for i, arg := range args {
		if values[i], err = v.marshaller.ToValue(arg); err != nil {
			return vm.RunOptions{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	return vm.RunOptions{Target: t, Args: values}, nil
}

// adapt returns the target for a host object. An object that already has a
// thread keeps its adapter, so the scheduler sees the same target and
// replaces that thread.
func (v *VM) adapt(obj interface{}) (vm.Target, error) {
	if obj == nil {
		return nil, nil
	}
	if t, ok := obj.(vm.Target); ok {
		return t, nil
	}
	if reflect.TypeOf(obj).Kind() != reflect.Ptr {
		return nil, fmt.Errorf("target must be a pointer to a struct, got %T", obj)
	}
	if t, ok := v.targets[obj]; ok {
		return t, nil
	}
	t, err := NewStructTarget(obj)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (v *VM) bound(t vm.Target, live bool) {
	st, ok := t.(*StructTarget)
	if !ok {
		return
	}
	if live {
		v.targets[st.obj] = st
	} else if v.targets[st.obj] == st {
		delete(v.targets, st.obj)
	}
}

func unwrap(t vm.Target) interface{} {
	if t == nil {
		return nil
	}
	if st, ok := t.(*StructTarget); ok {
		return st.Object()
	}
	return t
}

// Update advances every thread by dt.
func (v *VM) Update(dt float64) {
	v.sched.Update(dt)
}

func (v *VM) Kill(id ThreadID) bool {
	return v.sched.Kill(id)
}

// KillTarget kills the thread bound to obj, if any.
func (v *VM) KillTarget(obj interface{}) bool {
	if t, ok := obj.(vm.Target); ok {
		return v.sched.KillTarget(t)
	}
	if obj == nil || reflect.TypeOf(obj).Kind() != reflect.Ptr {
		return false
	}
	t, ok := v.targets[obj]
	if !ok {
		return false
	}
	return v.sched.KillTarget(t)
}

func (v *VM) KillAll() {
	v.sched.KillAll()
}

// Release forgets the adapter for obj without touching its thread. Hosts
// that pool objects call it when an object is recycled, so the next Run on
// it starts alongside the old thread instead of replacing it.
func (v *VM) Release(obj interface{}) {
	if obj != nil && reflect.TypeOf(obj).Kind() == reflect.Ptr {
		delete(v.targets, obj)
	}
}

// OnError sets the handler for errors raised by scripts. target is the
// host object the failing thread was bound to, or nil.
func (v *VM) OnError(fn func(target interface{}, err error)) {
	v.sched.OnError(func(t vm.Target, err error) {
		fn(unwrap(t), err)
	})
}

// OnSpawn sets the handler called with every object a script spawns.
func (v *VM) OnSpawn(fn func(obj interface{})) {
	v.sched.OnSpawn(func(t vm.Target) {
		fn(unwrap(t))
	})
}

func (v *VM) Alive(id ThreadID) bool {
	return v.sched.Alive(id)
}

func (v *VM) ThreadCount() int {
	return v.sched.ThreadCount()
}

// Adapters returns the number of struct objects currently bound to a thread.
func (v *VM) Adapters() int {
	return len(v.targets)
}
