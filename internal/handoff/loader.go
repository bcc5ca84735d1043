package handoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/pkg/logger"
)

// Sizes used by the generated loader on ESP32 (ESP-IDF 5, 32-bit pointers).
const (
	BytesPerPixel = 4         // ARGB8888 render buffer
	StackSize     = 32 * 1024 // ThorVG parsing needs well over the default task stack
	ParamsSize    = 32        // sizeof(LottieLoadParams)
	TCBSize       = 352       // sizeof(StaticTask_t)
	SettleDelay   = 50 * time.Millisecond
	TaskPriority  = 5
)

// Allocation failures, one per step of the load sequence.
var (
	ErrBufferAlloc = errors.New("failed to allocate render buffer in PSRAM")
	ErrParamsAlloc = errors.New("failed to allocate load params in PSRAM")
	ErrStackAlloc  = errors.New("failed to allocate task stack in PSRAM")
	ErrTCBAlloc    = errors.New("failed to allocate task control block")
	ErrSpawn       = errors.New("failed to create load task")
)

// Source is either an embedded payload or a filesystem path.
type Source struct {
	Data []byte
	Path string
}

// Embedded reports whether the source is compiled into the firmware.
func (s Source) Embedded() bool {
	return s.Data != nil
}

// Target is the widget receiving the decoded animation.
type Target interface {
	AttachBuffer(buf *Block, width, height int)
}

// Decoder turns a source into frames in dst. It may fail; the loader does
// not interpret the error.
type Decoder interface {
	Decode(src Source, dst *Block, width, height int) error
}

// Spawner starts a task on a caller-supplied stack and control block
// (xTaskCreateStatic).
type Spawner interface {
	Spawn(name string, stack, tcb *Block, body func()) error
}

// GoSpawner runs task bodies on goroutines.
type GoSpawner struct{}

// Spawn starts body on a new goroutine.
func (GoSpawner) Spawn(_ string, _, _ *Block, body func()) error {
	go body()
	return nil
}

// Request describes one load.
type Request struct {
	WidgetID string
	Target   Target
	Source   Source
	Buffer   *Block // reuse an existing buffer (reload); not owned by the load
	Width    int
	Height   int
}

// BufferSize is the render buffer size in bytes.
func (r Request) BufferSize() int {
	return r.Width * r.Height * BytesPerPixel
}

// Result is what a successful Load hands back.
type Result struct {
	Task   *Task
	Buffer *Block
}

// Loader performs the allocate-or-unwind sequence and starts load tasks.
type Loader struct {
	heap      Heap
	decoder   Decoder
	spawner   Spawner
	settle    time.Duration
	stackSize int
	log       zerolog.Logger
}

// Option customises a Loader.
type Option func(*Loader)

// WithSpawner replaces the goroutine spawner.
func WithSpawner(s Spawner) Option {
	return func(l *Loader) { l.spawner = s }
}

// WithSettleDelay sets how long a task waits before decoding.
func WithSettleDelay(d time.Duration) Option {
	return func(l *Loader) { l.settle = d }
}

// WithStackSize overrides the dedicated stack size.
func WithStackSize(n int) Option {
	return func(l *Loader) { l.stackSize = n }
}

// NewLoader creates a loader drawing memory from heap.
func NewLoader(heap Heap, decoder Decoder, log zerolog.Logger, opts ...Option) *Loader {
	l := &Loader{
		heap:      heap,
		decoder:   decoder,
		spawner:   GoSpawner{},
		settle:    SettleDelay,
		stackSize: StackSize,
		log:       logger.Component(log, "lottie_loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load schedules req. On any allocation or spawn failure everything
// acquired by this call is released, a diagnostic is logged and an error
// wrapping one of the Err*Alloc/ErrSpawn sentinels is returned. The failure
// only affects this widget.
func (l *Loader) Load(req Request) (*Result, error) {
	var (
		u   unwind
		err error
	)
	fail := func(step error, cause error) (*Result, error) {
		u.release()
		l.log.Error().Err(cause).Str("widget", req.WidgetID).Msg(step.Error())
		if cause != nil {
			return nil, fmt.Errorf("widget %s: %w: %w", req.WidgetID, step, cause)
		}
		return nil, fmt.Errorf("widget %s: %w", req.WidgetID, step)
	}

	buffer := req.Buffer
	if buffer == nil {
		buffer, err = l.heap.Alloc(req.WidgetID+".buffer", req.BufferSize(), CapSPIRAM|Cap8Bit)
		if err != nil {
			return fail(ErrBufferAlloc, err)
		}
		u.push(func() { l.heap.Free(buffer) })
	}

	params, err := l.heap.Alloc(req.WidgetID+".params", ParamsSize, CapSPIRAM|Cap8Bit)
	if err != nil {
		return fail(ErrParamsAlloc, err)
	}
	u.push(func() { l.heap.Free(params) })

	stack, err := l.heap.Alloc(req.WidgetID+".stack", l.stackSize, CapSPIRAM|Cap8Bit)
	if err != nil {
		return fail(ErrStackAlloc, err)
	}
	u.push(func() { l.heap.Free(stack) })

	// The control block must not live in PSRAM.
	tcb, err := l.heap.Alloc(req.WidgetID+".tcb", TCBSize, CapInternal|Cap8Bit)
	if err != nil {
		return fail(ErrTCBAlloc, err)
	}
	u.push(func() { l.heap.Free(tcb) })

	task := newTask("lottie_load:" + req.WidgetID)
	task.Stack, task.TCB = stack, tcb

	if err := l.spawner.Spawn(task.Name, stack, tcb, func() { l.run(task, req, buffer, params) }); err != nil {
		return fail(ErrSpawn, err)
	}
	u.disarm()

	l.log.Debug().
		Str("widget", req.WidgetID).
		Int("width", req.Width).
		Int("height", req.Height).
		Bool("embedded", req.Source.Embedded()).
		Msg("Lottie load scheduled")

	return &Result{Task: task, Buffer: buffer}, nil
}

// run is the task body.
func (l *Loader) run(task *Task, req Request, buffer, params *Block) {
	task.advance(StateWaiting)
	if l.settle > 0 {
		// keep clear of an in-progress render pass
		time.Sleep(l.settle)
	}

	task.advance(StateDecoding)
	if err := l.decoder.Decode(req.Source, buffer, req.Width, req.Height); err != nil {
		task.setErr(err)
		l.log.Warn().Err(err).Str("widget", req.WidgetID).Msg("Lottie decode reported an error")
	}

	task.advance(StateAttaching)
	if req.Target != nil {
		req.Target.AttachBuffer(buffer, req.Width, req.Height)
	}

	l.heap.Free(params)
	task.advance(StateTerminated)
}
