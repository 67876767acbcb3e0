package media

import (
	"sync"
	"sync/atomic"

	"github.com/lanikai/alohacar/internal/logging"
	"github.com/pkg/errors"
)

var log = logging.DefaultLogger.WithTag("media")

// FrameDecoder is a synchronous decoder, such as a binding to a software
// codec library. AsyncDecoder turns it into a VideoDecoder.
type FrameDecoder interface {
	Configure(cfg DecoderConfig) error

	// DecodeFrame decodes one access unit, returning any frames that became
	// available. Frames are owned by the caller.
	DecodeFrame(chunk EncodedChunk) ([]*Frame, error)

	Close() error
}

// Default number of access units that may wait for the decode goroutine.
const DefaultDecodeQueueDepth = 8

type decodeJob struct {
	cfg   *DecoderConfig
	reply chan error

	chunk EncodedChunk
	buf   *[]byte
}

// AsyncDecoder runs a FrameDecoder on its own goroutine. Decode copies the
// chunk and returns immediately; output is delivered via callbacks from the
// decode goroutine.
type AsyncDecoder struct {
	dec FrameDecoder
	cb  DecoderCallbacks

	jobs chan decodeJob

	// Closed when Close() is requested, to trigger run loop exit.
	quit chan struct{}

	// Closed when run loop actually terminates.
	terminated chan struct{}

	closed    int32
	closeOnce sync.Once

	bufs sync.Pool
}

func NewAsyncDecoder(dec FrameDecoder, cb DecoderCallbacks, depth int) *AsyncDecoder {
	if depth <= 0 {
		depth = DefaultDecodeQueueDepth
	}
	d := &AsyncDecoder{
		dec:        dec,
		cb:         cb,
		jobs:       make(chan decodeJob, depth),
		quit:       make(chan struct{}),
		terminated: make(chan struct{}),
	}
	d.bufs.New = func() interface{} {
		b := make([]byte, 0, 64*1024)
		return &b
	}
	go d.run()
	return d
}

// Configure waits for previously queued chunks to be decoded, then
// (re)configures the underlying decoder.
func (d *AsyncDecoder) Configure(cfg DecoderConfig) error {
	if atomic.LoadInt32(&d.closed) != 0 {
		return ErrDecoderClosed
	}
	reply := make(chan error, 1)
	select {
	case d.jobs <- decodeJob{cfg: &cfg, reply: reply}:
	case <-d.quit:
		return ErrDecoderClosed
	}
	select {
	case err := <-reply:
		if err != nil {
			return errors.Wrapf(ErrDecoderConfig, "%s %dx%d: %v", cfg.Codec, cfg.CodedWidth, cfg.CodedHeight, err)
		}
		return nil
	case <-d.terminated:
		return ErrDecoderClosed
	}
}

// Decode copies the chunk and queues it. It never blocks; a full queue is a
// submission error.
func (d *AsyncDecoder) Decode(chunk EncodedChunk) error {
	if atomic.LoadInt32(&d.closed) != 0 {
		return errors.Wrap(ErrDecodeSubmission, ErrDecoderClosed.Error())
	}

	buf := d.bufs.Get().(*[]byte)
	*buf = append((*buf)[:0], chunk.Data...)
	chunk.Data = *buf

	select {
	case d.jobs <- decodeJob{chunk: chunk, buf: buf}:
		return nil
	default:
		d.bufs.Put(buf)
		return errors.Wrapf(ErrDecodeSubmission, "queue full (%d chunks)", cap(d.jobs))
	}
}

// Pending returns the number of queued chunks.
func (d *AsyncDecoder) Pending() int {
	return len(d.jobs)
}

func (d *AsyncDecoder) run() {
	defer close(d.terminated)
	for {
		select {
		case <-d.quit:
			return
		case job := <-d.jobs:
			d.handle(job)
		}
	}
}

func (d *AsyncDecoder) handle(job decodeJob) {
	if job.cfg != nil {
		job.reply <- d.dec.Configure(*job.cfg)
		return
	}

	frames, err := d.dec.DecodeFrame(job.chunk)
	d.bufs.Put(job.buf)
	if err != nil {
		log.Debug("Decode of %v chunk %d failed: %v", job.chunk.Type, job.chunk.Timestamp, err)
		if d.cb.Error != nil {
			d.cb.Error(err)
		}
	}
	for _, f := range frames {
		if d.cb.Output != nil {
			d.cb.Output(f)
		} else {
			f.Release()
		}
	}
}

// Close stops the decode goroutine, discarding queued chunks, and closes the
// underlying decoder. Safe to call more than once.
func (d *AsyncDecoder) Close() error {
	var err error
	d.closeOnce.Do(func() {
		atomic.StoreInt32(&d.closed, 1)
		close(d.quit)
		<-d.terminated
		for {
			select {
			case job := <-d.jobs:
				if job.reply != nil {
					job.reply <- ErrDecoderClosed
				}
			default:
				err = d.dec.Close()
				return
			}
		}
	})
	return err
}
