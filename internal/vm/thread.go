package vm

import (
	"errors"

	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/diagnostics"
)

var errStackOverflow = errors.New("stack overflow")

// ThreadID identifies one run of a thread. Pooled threads get a new id
// every time they are reused, so a stale id never matches.
type ThreadID uint64

type ThreadState uint8

const (
	ThreadIdle ThreadState = iota // in the pool
	ThreadRunning
	ThreadSleeping
	ThreadTerminated
)

func (s ThreadState) String() string {
	switch s {
	case ThreadIdle:
		return "idle"
	case ThreadRunning:
		return "running"
	case ThreadSleeping:
		return "sleeping"
	case ThreadTerminated:
		return "terminated"
	}
	return "unknown"
}

// CallFrame represents a single ongoing function call
type CallFrame struct {
	closure *Closure // The closure being executed
	chunk   *Chunk   // Shortcut to closure.Function.Chunk
	ip      int      // Index of the next instruction
	base    int      // Stack index of the first argument; the callee sits just below
}

// Thread is one cooperatively scheduled script instance.
type Thread struct {
	id    ThreadID
	sched *Scheduler

	stack  []Value
	sp     int // Stack pointer (points to next free slot)
	frames []CallFrame

	state          ThreadState
	sleepRemaining float64
	target         Target
	onReturn       func(Value)

	// Linked list of open upvalues, sorted by stack slot (highest first)
	openUpvalues *Upvalue

	// executing is set while the dispatch loop for this thread is on the
	// Go stack; a kill then only marks the thread and the loop releases it.
	executing bool

	// Arena bookkeeping: position in Scheduler.arena and live list links.
	index      int
	prev, next int
}

func newThread(s *Scheduler, index int) *Thread {
	return &Thread{
		sched:  s,
		stack:  make([]Value, config.InitialStackSize),
		frames: make([]CallFrame, 0, 16),
		index:  index,
		prev:   nilIndex,
		next:   nilIndex,
	}
}

// Alive reports whether the thread is running or sleeping.
func (t *Thread) Alive() bool {
	return t.state == ThreadRunning || t.state == ThreadSleeping
}

// start sets up the first frame and runs the first slice synchronously.
func (t *Thread) start(cl *Closure, args []Value, onReturn func(Value)) {
	t.state = ThreadRunning
	t.onReturn = onReturn
	t.push(ClosureVal(cl))
	for _, arg := range args {
		t.push(arg)
	}
	t.frames = append(t.frames[:0], CallFrame{closure: cl, chunk: cl.Function.Chunk, base: t.sp - len(args)})
	t.run()
}

// advance is called once per scheduler tick.
func (t *Thread) advance(dt float64) {
	if t.state == ThreadSleeping {
		t.sleepRemaining -= dt
		if t.sleepRemaining > 0 {
			return
		}
		t.state = ThreadRunning
	}
	if t.state == ThreadRunning {
		t.run()
	}
}

// run executes until the thread sleeps, returns, fails or is killed.
func (t *Thread) run() {
	t.executing = true
	result, done, err := t.execute()
	t.executing = false

	switch {
	case err != nil:
		t.state = ThreadTerminated
		t.sched.threadErrored(t, err)
	case done:
		if t.onReturn != nil {
			t.onReturn(result)
		}
		t.sched.threadFinished(t)
	}

	if t.state == ThreadTerminated {
		t.sched.release(t)
	}
}

// reset returns the thread to its pooled state.
func (t *Thread) reset() {
	t.closeUpvalues(0)
	for i := 0; i < t.sp; i++ {
		t.stack[i] = Value{}
	}
	t.sp = 0
	t.frames = t.frames[:0]
	t.state = ThreadIdle
	t.sleepRemaining = 0
	t.target = nil
	t.onReturn = nil
}

func (t *Thread) push(v Value) {
	if t.sp >= len(t.stack) {
		t.growStack()
	}
	t.stack[t.sp] = v
	t.sp++
}

func (t *Thread) growStack() {
	max := t.sched.maxStack
	if len(t.stack) >= max {
		panic(errStackOverflow)
	}
	size := len(t.stack) * 2
	if size > max {
		size = max
	}
	stack := make([]Value, size)
	copy(stack, t.stack[:t.sp])
	t.stack = stack
}

func (t *Thread) pop() Value {
	t.sp--
	return t.stack[t.sp]
}

// captureUpvalue returns the open upvalue for slot, creating it if needed.
// The list stays sorted so each slot has at most one upvalue.
func (t *Thread) captureUpvalue(slot int) *Upvalue {
	var prev *Upvalue
	upvalue := t.openUpvalues
	for upvalue != nil && upvalue.slot > slot {
		prev = upvalue
		upvalue = upvalue.next
	}

	if upvalue != nil && upvalue.slot == slot {
		return upvalue
	}

	created := &Upvalue{open: true, thread: t, slot: slot, next: upvalue}
	if prev == nil {
		t.openUpvalues = created
	} else {
		prev.next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above lastSlot.
func (t *Thread) closeUpvalues(lastSlot int) {
	for t.openUpvalues != nil && t.openUpvalues.slot >= lastSlot {
		upvalue := t.openUpvalues
		t.openUpvalues = upvalue.next
		upvalue.close()
	}
}

// runtimeError builds a diagnostic for the instruction being executed.
func (t *Thread) runtimeError(format string, args ...interface{}) error {
	return diagnostics.NewRuntime(t.currentLine(), format, args...)
}

func (t *Thread) currentLine() int {
	if len(t.frames) == 0 {
		return 0
	}
	frame := &t.frames[len(t.frames)-1]
	return frame.chunk.LineAt(frame.ip - 1)
}
