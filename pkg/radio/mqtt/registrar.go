package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/board"
	"github.com/robotalks/edas/pkg/msgs"
)

// Telemetry topics relative to the queue prefix.
const (
	MetaFilter   = "boards/+/meta"
	StatusFilter = "boards/+/status"
)

// MetaTopic is the retained topic describing board id.
func MetaTopic(id int) string {
	return fmt.Sprintf("boards/%d/meta", id)
}

// StatusTopic is the topic board id publishes its status to.
func StatusTopic(id int) string {
	return fmt.Sprintf("boards/%d/status", id)
}

// BoardFromTopic extracts the board id of a telemetry topic.
func BoardFromTopic(topic string) (int, bool) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[0] != "boards" {
		return 0, false
	}
	id, err := strconv.Atoi(items[1])
	return id, err == nil
}

// Registrar announces a board on the broker: its meta is published
// retained on connect and cleared by the will when the board vanishes.
// It also publishes status changes.
type Registrar struct {
	Queue *Queue
	Meta  *msgs.BoardMeta

	metaData []byte
}

// NewRegistrar creates a Registrar with its own connection.
func NewRegistrar(brokerURL string, meta *msgs.BoardMeta) (*Registrar, error) {
	data, err := proto.Marshal(meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	topic := MetaTopic(int(meta.Id))
	opts.SetBinaryWill(topicPrefix+topic, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID(fmt.Sprintf("edas:board-%d", meta.Id))
	}
	r := &Registrar{Queue: NewQueue(opts, topicPrefix), Meta: meta, metaData: data}
	r.Queue.OnConnect = func(*Queue) { r.onConnected() }
	return r, nil
}

// AddToLoop implements framework.LoopAdder.
func (r *Registrar) AddToLoop(loop *framework.Loop) {
	loop.AddRunnable(r)
}

// Run implements framework.Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	if err := r.Queue.Connect(); err != nil {
		return err
	}
	<-ctx.Done()
	if err := Wait(r.Queue.PubWith(MetaTopic(int(r.Meta.Id)), nil, 1, true)); err != nil {
		glog.Warningf("clear meta: %v", err)
	}
	return r.Queue.Close()
}

// ReportStatus implements board.StatusReporter.
func (r *Registrar) ReportStatus(ctx context.Context, s board.Status) error {
	data, err := proto.Marshal(msgs.NewBoardStatus(s))
	if err != nil {
		return err
	}
	r.Queue.Pub(StatusTopic(s.ID), data)
	return nil
}

func (r *Registrar) onConnected() {
	r.Queue.PubWith(MetaTopic(int(r.Meta.Id)), r.metaData, 1, true)
}

// Monitor watches the telemetry of all boards.
type Monitor struct {
	Queue    *Queue
	OnMeta   func(*msgs.BoardMeta)
	OnStatus func(*msgs.BoardStatus)
	// OnGone is called when the meta of a board is cleared.
	OnGone func(id int)
}

// Subscribe subscribes the telemetry topics.
func (m *Monitor) Subscribe() []*Subscription {
	return []*Subscription{
		m.Queue.Sub(MetaFilter, m.handleMeta),
		m.Queue.Sub(StatusFilter, m.handleStatus),
	}
}

func (m *Monitor) handleMeta(topic string, payload []byte) {
	id, ok := BoardFromTopic(topic)
	if !ok {
		return
	}
	if len(payload) == 0 {
		if m.OnGone != nil {
			m.OnGone(id)
		}
		return
	}
	meta, err := msgs.DecodeBoardMeta(payload)
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	if m.OnMeta != nil {
		m.OnMeta(meta)
	}
}

func (m *Monitor) handleStatus(topic string, payload []byte) {
	status, err := msgs.DecodeBoardStatus(payload)
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	if m.OnStatus != nil {
		m.OnStatus(status)
	}
}
