// Package msgs defines the telemetry messages boards publish for
// monitoring.
package msgs

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/edas/pkg/mesh/board"
)

// BoardStatus is an Event message reflecting the status of a board.
type BoardStatus struct {
	Id           int32   `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	State        string  `protobuf:"bytes,2,opt,name=state,proto3" json:"state,omitempty"`
	Asleep       bool    `protobuf:"varint,3,opt,name=asleep,proto3" json:"asleep,omitempty"`
	HoldsToken   bool    `protobuf:"varint,4,opt,name=holds_token,proto3" json:"holds_token,omitempty"`
	PassCount    int32   `protobuf:"varint,5,opt,name=pass_count,proto3" json:"pass_count,omitempty"`
	Tally        int32   `protobuf:"zigzag32,6,opt,name=tally,proto3" json:"tally,omitempty"`
	Epoch        uint32  `protobuf:"varint,7,opt,name=epoch,proto3" json:"epoch,omitempty"`
	Estimate     float32 `protobuf:"fixed32,8,opt,name=estimate,proto3" json:"estimate,omitempty"`
	Iterations   int32   `protobuf:"varint,9,opt,name=iterations,proto3" json:"iterations,omitempty"`
	LastEstimate float32 `protobuf:"fixed32,10,opt,name=last_estimate,proto3" json:"last_estimate,omitempty"`
	HasEstimate  bool    `protobuf:"varint,11,opt,name=has_estimate,proto3" json:"has_estimate,omitempty"`
}

// NewBoardStatus converts a status snapshot.
func NewBoardStatus(s board.Status) *BoardStatus {
	return &BoardStatus{
		Id:           int32(s.ID),
		State:        s.State.String(),
		Asleep:       s.Asleep,
		HoldsToken:   s.HoldsToken,
		PassCount:    int32(s.PassCount),
		Tally:        int32(s.Tally),
		Epoch:        uint32(s.Epoch),
		Estimate:     s.Estimate,
		Iterations:   int32(s.Iterations),
		LastEstimate: s.LastEstimate,
		HasEstimate:  s.HasEstimate,
	}
}

// ProtoMessage implements proto.Message.
func (m *BoardStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *BoardStatus) Reset() { *m = BoardStatus{} }

// String implements proto.Message.
func (m *BoardStatus) String() string { return proto.CompactTextString(m) }

// BoardMeta describes a board, published retained when it comes online.
type BoardMeta struct {
	Id        int32   `protobuf:"varint,1,opt,name=id,proto3" json:"id"`
	MachineId string  `protobuf:"bytes,2,opt,name=machine_id,proto3" json:"machine_id,omitempty"`
	Neighbors []int32 `protobuf:"varint,3,rep,packed,name=neighbors,proto3" json:"neighbors,omitempty"`
	Online    bool    `protobuf:"varint,4,opt,name=online,proto3" json:"online"`
}

// ProtoMessage implements proto.Message.
func (m *BoardMeta) ProtoMessage() {}

// Reset implements proto.Message.
func (m *BoardMeta) Reset() { *m = BoardMeta{} }

// String implements proto.Message.
func (m *BoardMeta) String() string { return proto.CompactTextString(m) }

// Encode marshals a message.
func Encode(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeBoardStatus unmarshals a BoardStatus.
func DecodeBoardStatus(data []byte) (*BoardStatus, error) {
	var m BoardStatus
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeBoardMeta unmarshals a BoardMeta.
func DecodeBoardMeta(data []byte) (*BoardMeta, error) {
	var m BoardMeta
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
