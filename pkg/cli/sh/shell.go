// Package sh provides the interactive command surface of a board.
package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/board"
	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/msgs"
)

// DefaultTimeout bounds the wait for a command result.
const DefaultTimeout = time.Second

// Target is the board the shell drives through its loop.
type Target struct {
	Loop      framework.LoopControl
	ID        int
	Topology  *topology.Topology
	MachineID string
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Target Target
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&AverageCmd,
		&StatusCmd,
		&InfoCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(target Target) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     DefaultTimeout,

		Shell:  ishell.New(),
		Target: target,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("[board %d] > ", target.ID))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// DoCommand posts a command to the board loop and waits for result.
func (s *Shell) DoCommand(msg framework.Message) (framework.Message, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	res := board.Wait(ctx, board.DoCommand(s.Target.Loop, msg))
	if errors.Is(res.Err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("command timeout")
	}
	return res.Msg, res.Err
}

// Average starts averaging with the target as initiator.
func (s *Shell) Average() error {
	_, err := s.DoCommand(&board.AverageRequest{})
	return err
}

// Status queries the status of the target.
func (s *Shell) Status() (board.Status, error) {
	reply, err := s.DoCommand(&board.StatusQuery{})
	if err != nil {
		return board.Status{}, err
	}
	r, ok := reply.(*board.StatusReply)
	if !ok {
		return board.Status{}, fmt.Errorf("unexpected reply %T", reply)
	}
	return r.Status, nil
}

// Format renders v as JSON or text according to OutputJSON.
func (s *Shell) Format(v fmt.Stringer) (string, error) {
	if !s.OutputJSON {
		return v.String(), nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Info describes the target.
func (s *Shell) Info() *Info {
	t := s.Target
	info := &Info{ID: t.ID, MachineID: t.MachineID}
	if t.Topology != nil {
		info.Boards = t.Topology.Size()
		info.Tour = t.Topology.Tour()
		for id := 0; id < t.Topology.Size(); id++ {
			if id != t.ID && t.Topology.Adjacent(t.ID, id) {
				info.Neighbors = append(info.Neighbors, id)
			}
		}
	}
	return info
}

// Info is the identity of a board.
type Info struct {
	ID        int    `json:"id"`
	MachineID string `json:"machine_id"`
	Boards    int    `json:"boards"`
	Neighbors []int  `json:"neighbors"`
	Tour      []int  `json:"tour"`
}

func (i *Info) String() string {
	ints := func(vals []int) string {
		strs := make([]string, len(vals))
		for n, v := range vals {
			strs[n] = fmt.Sprint(v)
		}
		return strings.Join(strs, " ")
	}
	return fmt.Sprintf("board %d of %d (machine %s)\nneighbors: %s\ntour: %s",
		i.ID, i.Boards, i.MachineID, ints(i.Neighbors), ints(i.Tour))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func (s *Shell) print(c *ishell.Context, v fmt.Stringer) {
	out, err := s.Format(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(out)
}

var (
	// AverageCmd starts averaging with this board as initiator.
	AverageCmd = ishell.Cmd{
		Name:    "average",
		Aliases: []string{"avg", "a"},
		Help:    "start distributed averaging",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Average(); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// StatusCmd prints the board status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "show board status",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			status, err := s.Status()
			if err != nil {
				c.Err(err)
				return
			}
			s.print(c, msgs.NewBoardStatus(status))
		},
	}

	// InfoCmd prints the board identity.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "show board identity",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.print(c, s.Info())
		},
	}
)
