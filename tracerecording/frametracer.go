package tracerecording

import (
	"time"

	"github.com/zeroasic/umilink/hookable"
	"github.com/zeroasic/umilink/queue"
	"github.com/zeroasic/umilink/umi"
)

// frameTraceTable is the table every traced frame lands in.
const frameTraceTable = "frame_trace"

// A FrameTraceEntry is one recorded frame event.
type FrameTraceEntry struct {
	ID        string
	Queue     string
	Direction string
	Opcode    string
	Address   uint64
	SrcAddr   uint64
	Length    int
	EOM       bool
	TimeNano  int64
}

// A FrameTracer is a hook that records every frame passing a queue it is
// attached to.
type FrameTracer struct {
	recorder DataRecorder
}

// NewFrameTracer creates a tracer that writes into the given recorder.
func NewFrameTracer(recorder DataRecorder) *FrameTracer {
	recorder.CreateTable(frameTraceTable, FrameTraceEntry{})

	return &FrameTracer{recorder: recorder}
}

// Trace attaches the tracer to a queue so that its pushes and pops are
// recorded.
func Trace(t *FrameTracer, q queue.Queue) {
	q.AcceptHook(t)
}

// Func records the frame carried by the hook context. Frames that do not
// decode as packets are skipped; the protocol layer reports those itself.
func (t *FrameTracer) Func(ctx hookable.HookCtx) {
	frame, ok := ctx.Item.([]byte)
	if !ok {
		return
	}

	p, err := umi.Decode(frame)
	if err != nil {
		return
	}

	direction := "push"
	if ctx.Pos == queue.HookPosPop {
		direction = "pop"
	}

	name := ""
	if q, ok := ctx.Domain.(queue.Queue); ok {
		name = q.Name()
	}

	t.recorder.InsertData(frameTraceTable, FrameTraceEntry{
		ID:        p.ID,
		Queue:     name,
		Direction: direction,
		Opcode:    p.Opcode.String(),
		Address:   p.Address,
		SrcAddr:   p.SrcAddr,
		Length:    p.Length,
		EOM:       p.EOM,
		TimeNano:  time.Now().UnixNano(),
	})
}
