package vm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/diagnostics"
	"github.com/sirupsen/logrus"
)

// nilIndex terminates the live list.
const nilIndex = -1

// maxStartDepth bounds threads starting threads within a single slice.
const maxStartDepth = 200

var errTooManyStarts = errors.New("too many nested thread starts")

// Options configure a Scheduler. Zero values fall back to the defaults in
// the config package.
type Options struct {
	MaxFrames   int
	MaxStack    int
	DefaultType string
	Logger      *logrus.Logger
	// Disassemble logs bytecode compiled through RunSource at debug level.
	Disassemble bool
}

// RunOptions describe how a script is started from the host.
type RunOptions struct {
	// Target binds the thread to an existing host object. Any thread
	// already bound to it is killed.
	Target Target
	// Type builds a new target with a registered factory when Target is nil.
	Type     string
	Args     []Value
	OnReturn func(Value)
}

type threadRef struct {
	t  *Thread
	id ThreadID
}

// Scheduler owns every thread and the shared global table, and advances
// live threads once per Update. It is not safe for concurrent use; all
// calls must come from the host's update loop.
type Scheduler struct {
	id  uuid.UUID
	log *logrus.Entry

	globals     map[string]Value
	types       map[string]Factory
	defaultType string
	maxFrames   int
	maxStack    int
	disassemble bool

	// Threads live in arena for the scheduler's lifetime. Live ones are
	// linked from head, most recently started first; released ones are
	// listed in free.
	arena  []*Thread
	free   []int
	head   int
	byID   map[ThreadID]int
	owners map[Target]ThreadID
	nextID ThreadID

	onError func(Target, error)
	onSpawn func(Target)
	onBind  func(Target, bool)

	batch      []threadRef
	updating   bool
	startDepth int
}

func NewScheduler(opts Options) *Scheduler {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = config.DefaultMaxFrames
	}
	if opts.MaxStack < config.InitialStackSize {
		opts.MaxStack = config.DefaultMaxStack
	}
	if opts.DefaultType == "" {
		opts.DefaultType = config.DefaultTypeKey
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	id := uuid.New()
	return &Scheduler{
		id:          id,
		log:         opts.Logger.WithField("scheduler", id.String()),
		globals:     make(map[string]Value),
		types:       make(map[string]Factory),
		defaultType: opts.DefaultType,
		maxFrames:   opts.MaxFrames,
		maxStack:    opts.MaxStack,
		disassemble: opts.Disassemble,
		head:        nilIndex,
		byID:        make(map[ThreadID]int),
		owners:      make(map[Target]ThreadID),
	}
}

// ID returns the unique id of this scheduler, also attached to its logs.
func (s *Scheduler) ID() uuid.UUID {
	return s.id
}

// Run starts fn on a new thread and runs it up to its first sleep, return
// or error before returning. Errors that keep the thread from starting are
// returned and also reported to the error handler.
func (s *Scheduler) Run(fn *CompiledFunction, opts RunOptions) (ThreadID, error) {
	target, err := s.runTarget(fn, opts)
	if err != nil {
		s.emitError(opts.Target, err)
		return 0, err
	}
	id, err := s.startThread(&Closure{Function: fn}, opts.Args, target, opts.OnReturn)
	if err != nil {
		s.emitError(target, err)
	}
	return id, err
}

// runTarget checks the run request and returns the target to bind, built
// with the factory for opts.Type when no target was given.
func (s *Scheduler) runTarget(fn *CompiledFunction, opts RunOptions) (Target, error) {
	if fn == nil {
		return nil, errors.New("no script to run")
	}
	for i, arg := range opts.Args {
		if !arg.Valid() {
			return nil, fmt.Errorf("argument %d is not a valid value", i+1)
		}
	}
	if len(opts.Args) != fn.Arity {
		return nil, diagnostics.NewRuntime(fn.StartLine, "script expects %d arguments but got %d", fn.Arity, len(opts.Args))
	}

	target := opts.Target
	if target == nil && opts.Type != "" {
		factory, ok := s.types[opts.Type]
		if !ok {
			return nil, diagnostics.NewSpawn(fn.StartLine, "unknown type '%s'", opts.Type)
		}
		var err error
		target, err = factory()
		if err == nil && target == nil {
			err = errors.New("factory returned no object")
		}
		if err != nil {
			return nil, diagnostics.NewSpawn(fn.StartLine, "can't create '%s': %v", opts.Type, err)
		}
		s.spawned(target)
	}

	return target, nil
}

// RunSource compiles src and runs it. Compile errors are reported to the
// error handler with the requested target as well as returned.
func (s *Scheduler) RunSource(src string, opts RunOptions) (ThreadID, error) {
	fn, err := CompileWithOptions(src, CompileOptions{Disassemble: s.disassemble})
	if err != nil {
		s.emitError(opts.Target, err)
		return 0, err
	}
	return s.Run(fn, opts)
}

// Update advances every live thread by dt. Threads started during the pass
// have already run their first slice and wait for the next Update.
func (s *Scheduler) Update(dt float64) {
	if s.updating {
		s.log.Warn("Update called from inside a running tick, ignored")
		return
	}
	s.updating = true
	defer func() { s.updating = false }()

	s.batch = s.batch[:0]
	for i := s.head; i != nilIndex; i = s.arena[i].next {
		t := s.arena[i]
		s.batch = append(s.batch, threadRef{t: t, id: t.id})
	}

	for _, ref := range s.batch {
		// Killed, or killed and reused, since the snapshot.
		if ref.t.id != ref.id || !ref.t.Alive() {
			continue
		}
		ref.t.advance(dt)
	}
}

// Kill terminates a live thread. Its completion callback is not called.
func (s *Scheduler) Kill(id ThreadID) bool {
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	t := s.arena[idx]
	if !t.Alive() {
		return false
	}

	s.log.WithFields(logrus.Fields{"thread": id, "state": t.state}).Debug("thread killed")
	t.state = ThreadTerminated
	if !t.executing {
		s.release(t)
	}
	return true
}

// KillTarget kills the thread bound to target, if any.
func (s *Scheduler) KillTarget(target Target) bool {
	if !comparableTarget(target) {
		return false
	}
	id, ok := s.owners[target]
	if !ok {
		return false
	}
	return s.Kill(id)
}

func (s *Scheduler) KillAll() {
	var ids []ThreadID
	for i := s.head; i != nilIndex; i = s.arena[i].next {
		ids = append(ids, s.arena[i].id)
	}
	for _, id := range ids {
		s.Kill(id)
	}
}

// AddNative defines a global visible to every script. A rejected native is
// also reported to the error handler.
func (s *Scheduler) AddNative(name string, v Value) error {
	var err error
	switch {
	case name == "":
		err = errors.New("native name must not be empty")
	case !v.Valid():
		err = fmt.Errorf("native '%s' is not a valid value", name)
	default:
		s.globals[name] = v
		return nil
	}
	s.emitError(nil, err)
	return err
}

// AddType registers a factory for spawn and RunOptions.Type.
func (s *Scheduler) AddType(key string, f Factory) error {
	if key == "" {
		return errors.New("type key must not be empty")
	}
	if f == nil {
		return fmt.Errorf("type '%s' has no factory", key)
	}
	s.types[key] = f
	return nil
}

// OnError sets the handler for errors that terminate a thread. It receives
// the target the failing thread was bound to, nil if none.
func (s *Scheduler) OnError(fn func(Target, error)) {
	s.onError = fn
}

// OnSpawn sets the handler called for every target built by a factory.
func (s *Scheduler) OnSpawn(fn func(Target)) {
	s.onSpawn = fn
}

// OnBind sets the handler called when a target gets a thread (live is
// true) and when its last thread ends.
func (s *Scheduler) OnBind(fn func(target Target, live bool)) {
	s.onBind = fn
}

func (s *Scheduler) Global(name string) (Value, bool) {
	v, ok := s.globals[name]
	return v, ok
}

func (s *Scheduler) Alive(id ThreadID) bool {
	idx, ok := s.byID[id]
	return ok && s.arena[idx].Alive()
}

// ThreadCount returns the number of live threads.
func (s *Scheduler) ThreadCount() int {
	n := 0
	for i := s.head; i != nilIndex; i = s.arena[i].next {
		if s.arena[i].Alive() {
			n++
		}
	}
	return n
}

// PoolSize returns the number of idle threads waiting for reuse.
func (s *Scheduler) PoolSize() int {
	return len(s.free)
}

// startThread validates the script, takes a thread from the pool, binds it
// and runs its first slice.
func (s *Scheduler) startThread(cl *Closure, args []Value, target Target, onReturn func(Value)) (ThreadID, error) {
	if cl == nil || cl.Function == nil {
		return 0, errors.New("can only run script functions")
	}
	if len(args) != cl.Function.Arity {
		return 0, fmt.Errorf("expected %d arguments but got %d", cl.Function.Arity, len(args))
	}
	if s.startDepth >= maxStartDepth {
		return 0, errTooManyStarts
	}

	t := s.acquire()
	s.bind(t, target)
	id := t.id
	s.log.WithFields(logrus.Fields{"thread": id, "script": cl.Function.Name}).Debug("thread started")

	s.startDepth++
	t.start(cl, args, onReturn)
	s.startDepth--
	return id, nil
}

func (s *Scheduler) acquire() *Thread {
	var t *Thread
	if n := len(s.free); n > 0 {
		t = s.arena[s.free[n-1]]
		s.free = s.free[:n-1]
	} else {
		t = newThread(s, len(s.arena))
		s.arena = append(s.arena, t)
	}

	s.nextID++
	t.id = s.nextID
	s.byID[t.id] = t.index

	t.prev = nilIndex
	t.next = s.head
	if s.head != nilIndex {
		s.arena[s.head].prev = t.index
	}
	s.head = t.index
	return t
}

// release unlinks a terminated thread and returns it to the pool.
func (s *Scheduler) release(t *Thread) {
	if t.state == ThreadIdle {
		return
	}
	if comparableTarget(t.target) && s.owners[t.target] == t.id {
		delete(s.owners, t.target)
		if s.onBind != nil {
			s.onBind(t.target, false)
		}
	}
	delete(s.byID, t.id)

	if t.prev != nilIndex {
		s.arena[t.prev].next = t.next
	} else {
		s.head = t.next
	}
	if t.next != nilIndex {
		s.arena[t.next].prev = t.prev
	}
	t.prev, t.next = nilIndex, nilIndex

	t.reset()
	s.free = append(s.free, t.index)
}

// bind attaches target to t. A target drives one thread at a time, so the
// previous owner is killed.
func (s *Scheduler) bind(t *Thread, target Target) {
	if target == nil {
		return
	}
	t.target = target
	if !comparableTarget(target) {
		return
	}
	prev, evict := s.owners[target]
	s.owners[target] = t.id
	if evict {
		s.log.WithFields(logrus.Fields{"thread": prev, "by": t.id}).Debug("thread evicted from its target")
		s.Kill(prev)
	}
	if s.onBind != nil {
		s.onBind(target, true)
	}
}

func (s *Scheduler) spawned(target Target) {
	if s.onSpawn != nil {
		s.onSpawn(target)
	}
}

func (s *Scheduler) emitError(target Target, err error) {
	if s.onError == nil {
		s.log.WithError(err).Error("script error")
		return
	}
	s.onError(target, err)
}

func (s *Scheduler) threadErrored(t *Thread, err error) {
	s.log.WithField("thread", t.id).WithError(err).Debug("thread errored")

	var spawnErr *SpawnError
	if errors.As(err, &spawnErr) && spawnErr.Target != nil {
		s.emitError(spawnErr.Target, err)
	}
	s.emitError(t.target, err)
}

func (s *Scheduler) threadFinished(t *Thread) {
	s.log.WithField("thread", t.id).Debug("thread finished")
}
