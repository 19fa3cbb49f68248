package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/robotalks/edas/pkg/framework"
)

// ErrUnknownCommand is replied to commands the controller can't handle.
var ErrUnknownCommand = errors.New("unknown command")

// AverageRequest asks the board to start averaging as the initiator.
type AverageRequest struct{}

// NewMessage implements framework.Message.
func (m *AverageRequest) NewMessage() framework.Message { return &AverageRequest{} }

// StatusQuery asks for a Status snapshot.
type StatusQuery struct{}

// NewMessage implements framework.Message.
func (m *StatusQuery) NewMessage() framework.Message { return &StatusQuery{} }

// StatusReply carries the reply of StatusQuery.
type StatusReply struct {
	Status Status
}

// NewMessage implements framework.Message.
func (m *StatusReply) NewMessage() framework.Message { return &StatusReply{} }

// StatusReporter is notified when the status of a board changed.
type StatusReporter interface {
	ReportStatus(context.Context, Status) error
}

// Result is the outcome of a command.
type Result struct {
	Msg framework.Message
	Err error
}

// CommandFuture delivers the Result of a command once.
type CommandFuture interface {
	ResultChan() <-chan Result
}

// CommandMsg wraps a request posted to the loop running a board.
type CommandMsg struct {
	Msg framework.Message

	resultCh chan Result
	once     sync.Once
}

// NewMessage implements framework.Message.
func (m *CommandMsg) NewMessage() framework.Message { return &CommandMsg{} }

// ResultChan implements CommandFuture.
func (m *CommandMsg) ResultChan() <-chan Result { return m.resultCh }

// Done replies the command. Only the first reply is delivered.
func (m *CommandMsg) Done(msg framework.Message, err error) {
	m.once.Do(func() {
		if m.resultCh != nil {
			m.resultCh <- Result{Msg: msg, Err: err}
		}
	})
}

// DoCommand posts msg to the loop and wakes it up.
func DoCommand(loop framework.LoopControl, msg framework.Message) CommandFuture {
	cmd := &CommandMsg{Msg: msg, resultCh: make(chan Result, 1)}
	loop.PostMessage(cmd)
	loop.TriggerNext()
	return cmd
}

// Wait waits for the result of a future or the cancellation of ctx.
func Wait(ctx context.Context, f CommandFuture) Result {
	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case res := <-f.ResultChan():
		return res
	}
}

// Controller runs a Board as a framework.Controller: one tick per loop
// iteration, after the pending commands are applied.
type Controller struct {
	Board     *Board
	Reporters []StatusReporter

	status  atomic.Pointer[Status]
	changed bool
}

// NewController wraps b.
func NewController(b *Board) *Controller {
	return &Controller{Board: b, changed: true}
}

// AddToLoop implements framework.LoopAdder.
func (c *Controller) AddToLoop(loop *framework.Loop) {
	loop.AddController(framework.PrLvCommand, framework.ControlFunc(c.handleCommands))
	loop.AddController(framework.PrLvProtocol, c)
	loop.AddController(framework.PrLvReport, framework.ControlFunc(c.notifyStatusChange))
}

// Control implements framework.Controller.
func (c *Controller) Control(cc framework.ControlContext) error {
	c.Board.Tick()
	s := c.Board.Status()
	if prev := c.status.Load(); prev == nil || prev.Summary() != s.Summary() {
		c.changed = true
	}
	c.status.Store(&s)
	if c.Board.Busy() {
		cc.TriggerNext()
	}
	return nil
}

// LastStatus returns the snapshot taken after the latest tick. It is
// safe to call from any goroutine.
func (c *Controller) LastStatus() (Status, bool) {
	if s := c.status.Load(); s != nil {
		return *s, true
	}
	return Status{}, false
}

func (c *Controller) handleCommands(cc framework.ControlContext) error {
	cc.Messages().ProcessMessages(framework.ProcessMessageFunc(func(mctx framework.MessageProcessingContext) {
		cmd, ok := mctx.CurrentMessage().(*CommandMsg)
		if !ok {
			return
		}
		mctx.MessageTaken()
		switch cmd.Msg.(type) {
		case *AverageRequest:
			cmd.Done(nil, c.Board.TriggerAverage())
		case *StatusQuery:
			cmd.Done(&StatusReply{Status: c.Board.Status()}, nil)
		default:
			cmd.Done(nil, ErrUnknownCommand)
		}
	}))
	return nil
}

func (c *Controller) notifyStatusChange(cc framework.ControlContext) error {
	if !c.changed {
		return nil
	}
	c.changed = false
	s := c.status.Load()
	if s == nil {
		return nil
	}
	var errs framework.AggregatedError
	for _, r := range c.Reporters {
		errs.Add(r.ReportStatus(cc.Context(), *s))
	}
	return errs.Aggregate()
}
