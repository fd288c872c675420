// Package stream moves sample data from a block source to an audio output through two
// alternating buffer slots.
//
// The producer side (Pump or Run) runs in the normal program flow and may block on
// storage reads. The consumer side (OnTransferComplete) is meant to be called from the
// completion interrupt of the output, or whatever emulates it, and never blocks.
// Both sides only meet in short critical sections guarded by a sync.Locker, which on an
// embedded target masks the completion interrupt.
//
// If the producer falls behind, the consumer hands out a silent buffer instead of
// replaying stale audio.
package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aligator/goexfat/blockdev"
	"github.com/aligator/goexfat/checkpoint"
	"github.com/aligator/goexfat/internal/logging"
)

const (
	// SlotBlocks is the number of storage blocks one slot holds.
	SlotBlocks = 1

	// SlotWords is the number of 16 bit words of one slot.
	SlotWords = SlotBlocks * blockdev.BlockSize / 2
)

// ErrFill is returned by Pump if a slot could not be filled completely.
var ErrFill = errors.New("could not fill the buffer slot")

// Buffer is the payload of one slot.
type Buffer [SlotWords]uint16

// silence is handed to the output on an underrun. It is never written.
var silence Buffer

// Output is the audio peripheral.
//
// Generated mock using mockgen:
//
//	mockgen -source=engine.go -destination=mock_output_test.go -package stream
type Output interface {
	// NextTransfer makes buf the target of the next transfer.
	// It is called from Start and from OnTransferComplete.
	NextTransfer(buf *Buffer) error
	// TransferComplete reports whether a transfer finished since the last ClearFlags.
	TransferComplete() bool
	// ClearFlags resets the completion state.
	ClearFlags()
}

// BlockSource delivers the sample data block by block. It is implemented by *wav.File.
// A failed read must not skip any data, so it can be retried.
type BlockSource interface {
	ReadNextBlock(dst *blockdev.Block) error
}

// Stats are counters of the engine activity.
type Stats struct {
	// Published counts slots the producer marked Filled.
	Published uint64
	// Abandoned counts fill attempts which failed.
	Abandoned uint64
	// Transfers counts slots handed to the output.
	Transfers uint64
	// Underruns counts silence handed to the output.
	Underruns uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the critical section used around every state change.
// The default is a sync.Mutex.
func WithLocker(l sync.Locker) Option {
	return func(e *Engine) {
		e.lock = l
	}
}

// WithLogger sets the logger of the producer side.
// Without it every record goes to the process-wide logger current at the time of logging.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPollInterval sets how long Run waits when there is no slot to fill.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// Engine is the double buffer between a BlockSource and an Output.
type Engine struct {
	src          BlockSource
	out          Output
	lock         sync.Locker
	logger       *slog.Logger
	pollInterval time.Duration

	states [2]State
	slots  [2]Buffer

	// Producer only.
	filling  int
	progress int
	block    blockdev.Block

	published atomic.Uint64
	abandoned atomic.Uint64
	transfers atomic.Uint64
	underruns atomic.Uint64
}

// New creates an engine. Slot 0 starts as Playing and slot 1 as Empty.
func New(src BlockSource, out Output, opts ...Option) *Engine {
	e := &Engine{
		src:          src,
		out:          out,
		lock:         &sync.Mutex{},
		pollInterval: time.Millisecond,
		states:       [2]State{Playing, Empty},
		filling:      -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start hands the initially playing slot to the output.
func (e *Engine) Start() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if err := e.out.NextTransfer(&e.slots[0]); err != nil {
		return checkpoint.From(err)
	}
	e.log().Info("stream started", "slotWords", SlotWords)
	return nil
}

// Pump runs one step of the producer: it claims an empty slot, fills it from the source
// and publishes it as Filled. It reports whether a slot was published.
//
// If the source fails, the slot stays Filling and the next Pump continues filling it.
// The error wraps ErrFill and the cause.
func (e *Engine) Pump() (bool, error) {
	if e.filling < 0 {
		e.filling = e.claim()
		if e.filling < 0 {
			return false, nil
		}
		e.progress = 0
	}

	slot := &e.slots[e.filling]
	for e.progress < SlotBlocks {
		if err := e.src.ReadNextBlock(&e.block); err != nil {
			e.abandoned.Add(1)
			e.log().Debug("fill abandoned", "slot", e.filling, "block", e.progress, "error", err)
			return false, checkpoint.Wrap(err, ErrFill)
		}

		words := slot[e.progress*blockdev.BlockSize/2 : (e.progress+1)*blockdev.BlockSize/2]
		for i := range words {
			words[i] = binary.LittleEndian.Uint16(e.block[2*i:])
		}
		e.progress++
	}

	e.lock.Lock()
	e.states[e.filling] = Filled
	e.lock.Unlock()

	e.published.Add(1)
	e.filling = -1
	return true, nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.Logger(logging.ComponentStream)
}

// claim marks the first Empty slot as Filling and returns its index, or -1.
func (e *Engine) claim() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	for i, s := range e.states {
		if s == Empty {
			e.states[i] = Filling
			return i
		}
	}
	return -1
}

// Run calls Pump until ctx is done. Failed fills are retried.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if published, _ := e.Pump(); published {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain waits until every Filled slot was handed to the output and the output asked for
// more data than there is. Call it after the source is exhausted.
func (e *Engine) Drain(ctx context.Context) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	mark := e.underruns.Load()
	for {
		if e.hasFilled() {
			mark = e.underruns.Load()
		} else if e.underruns.Load() > mark {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) hasFilled() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.states[0] == Filled || e.states[1] == Filled
}

// OnTransferComplete is the consumer. Call it once per completed output transfer.
//
// A Filled slot becomes the next transfer target and Playing, the other slot becomes
// Empty. Without a Filled slot the silence buffer is used if the output reports a
// completed transfer, and the states stay untouched.
//
// It does not block apart from the critical section and does no storage access.
func (e *Engine) OnTransferComplete() {
	e.lock.Lock()
	defer e.lock.Unlock()

	next := -1
	for i, s := range e.states {
		if s == Filled {
			next = i
			break
		}
	}

	if next >= 0 {
		if err := e.out.NextTransfer(&e.slots[next]); err == nil {
			e.states[next] = Playing
			e.states[next^1] = Empty
			e.transfers.Add(1)
		}
	} else if e.out.TransferComplete() {
		if err := e.out.NextTransfer(&silence); err == nil {
			e.underruns.Add(1)
		}
	}

	e.out.ClearFlags()
}

// States returns a snapshot of both slot states.
func (e *Engine) States() [2]State {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.states
}

// Silence returns the buffer used on underruns.
func (e *Engine) Silence() *Buffer {
	return &silence
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Published: e.published.Load(),
		Abandoned: e.abandoned.Load(),
		Transfers: e.transfers.Load(),
		Underruns: e.underruns.Load(),
	}
}
