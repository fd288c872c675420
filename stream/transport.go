package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/aligator/goexfat/checkpoint"
)

// ErrTransferPending is returned by Transport.NextTransfer if the previous target was not
// picked up yet.
var ErrTransferPending = errors.New("the next transfer is already set")

// Transport is an Output which writes every transfer as little endian samples to an
// io.Writer. It takes the place of the DMA controller on hosts without one.
//
// A blocking writer, like an audio device, paces the whole pipeline.
type Transport struct {
	w io.Writer

	mu       sync.Mutex
	next     *Buffer
	complete bool

	out [SlotWords * 2]byte
}

// NewTransport creates a transport writing to w.
func NewTransport(w io.Writer) *Transport {
	return &Transport{w: w}
}

func (t *Transport) NextTransfer(buf *Buffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.next != nil {
		return ErrTransferPending
	}
	t.next = buf
	return nil
}

func (t *Transport) TransferComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.complete
}

func (t *Transport) ClearFlags() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.complete = false
}

// Run transfers buffers until ctx is done or the writer fails.
// After every transfer onComplete is called, usually Engine.OnTransferComplete.
// Without a target the silence buffer is transferred.
func (t *Transport) Run(ctx context.Context, onComplete func()) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t.mu.Lock()
		buf := t.next
		t.next = nil
		t.mu.Unlock()

		if buf == nil {
			buf = &silence
		}

		for i, w := range buf {
			binary.LittleEndian.PutUint16(t.out[2*i:], w)
		}
		if _, err := t.w.Write(t.out[:]); err != nil {
			return checkpoint.From(err)
		}

		t.mu.Lock()
		t.complete = true
		t.mu.Unlock()

		onComplete()
	}
}
