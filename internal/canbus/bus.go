package canbus

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/train"
	"github.com/rs/zerolog"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

const (
	sendTimeout = 100 * time.Millisecond
	// frames waiting for the transmitter
	backlog = 16
)

// Sender transmits frames. *socketcan.Transmitter satisfies it.
type Sender interface {
	TransmitFrame(ctx context.Context, frame can.Frame) error
}

// Bus implements train.Observer and sends one command frame per tick.
// Frames are handed to a transmit goroutine and dropped when it falls behind.
type Bus struct {
	id     uint32
	sender Sender
	closer io.Closer
	log    zerolog.Logger

	mu      sync.Mutex
	frames  chan can.Frame
	closed  bool
	counter uint8
	dropped atomic.Int64
	done    chan struct{}
}

// Dial opens the configured socketcan interface.
func Dial(ctx context.Context, cfg config.CANConfig, log zerolog.Logger) (*Bus, error) {
	conn, err := socketcan.DialContext(ctx, "can", cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", cfg.Interface, err)
	}
	return New(socketcan.NewTransmitter(conn), conn, cfg.FrameID, log), nil
}

// New starts a bus on top of sender. closer may be nil.
func New(sender Sender, closer io.Closer, id uint32, log zerolog.Logger) *Bus {
	if id == 0 {
		id = DefaultFrameID
	}
	b := &Bus{
		id:     id,
		sender: sender,
		closer: closer,
		log: log.With().Str("component", "canbus").Logger().
			Sample(&zerolog.BurstSampler{Burst: 3, Period: time.Minute}),
		frames: make(chan can.Frame, backlog),
		done:   make(chan struct{}),
	}
	go b.transmit()
	return b
}

// OnTick encodes the tick output and queues it.
func (b *Bus) OnTick(s train.Snapshot) {
	cmd := CommandFromSnapshot(s)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	cmd.Counter = b.counter
	b.counter++

	select {
	case b.frames <- Encode(b.id, cmd):
	default:
		b.dropped.Add(1)
	}
}

// OnEvent does nothing, the bus only carries the command output.
func (b *Bus) OnEvent(train.Event) {}

// Dropped is the number of frames discarded because the transmitter was busy.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close sends what is queued and releases the interface.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.frames)
	b.mu.Unlock()

	<-b.done
	if n := b.dropped.Load(); n > 0 {
		b.log.Warn().Int64("dropped", n).Msg("Frames dropped")
	}
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}

func (b *Bus) transmit() {
	defer close(b.done)
	for f := range b.frames {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := b.sender.TransmitFrame(ctx, f); err != nil {
			b.log.Error().Err(err).Uint32("id", f.ID).Msg("Transmit failed")
		}
		cancel()
	}
}
