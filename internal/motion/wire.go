package motion

import (
	"fmt"
	"time"

	"github.com/danmuck/swarmctl/internal/protocol/frame"
	"github.com/danmuck/swarmctl/internal/protocol/schema"
	"github.com/danmuck/swarmctl/internal/protocol/tlv"
	"gonum.org/v1/gonum/spatial/r3"
)

var kindToMessage = map[Kind]uint32{
	KindTakeoff:       schema.MsgTakeoff,
	KindLand:          schema.MsgLand,
	KindGoTo:          schema.MsgGoTo,
	KindSetGroupMask:  schema.MsgSetGroupMask,
	KindVelocityWorld: schema.MsgVelocityWorld,
}

func durationFields(d Duration) []tlv.Field {
	return []tlv.Field{
		tlv.I32(schema.FieldDurationSec, d.Sec),
		tlv.U32(schema.FieldDurationNanosec, d.Nanosec),
	}
}

// EncodeFrame builds the wire frame for r.
func EncodeFrame(r Request, messageID uint64) (frame.Frame, error) {
	msgType, ok := kindToMessage[r.Kind]
	if !ok {
		return frame.Frame{}, fmt.Errorf("motion: unknown request kind %d", r.Kind)
	}
	fields := []tlv.Field{tlv.String(schema.FieldAgentID, r.AgentID)}
	switch r.Kind {
	case KindTakeoff, KindLand:
		fields = append(fields,
			tlv.U32(schema.FieldGroupMask, r.GroupMask),
			tlv.F64(schema.FieldHeight, r.Height),
		)
		fields = append(fields, durationFields(r.Duration)...)
	case KindGoTo:
		fields = append(fields,
			tlv.U32(schema.FieldGroupMask, r.GroupMask),
			tlv.F64(schema.FieldGoalX, r.Goal.X),
			tlv.F64(schema.FieldGoalY, r.Goal.Y),
			tlv.F64(schema.FieldGoalZ, r.Goal.Z),
			tlv.F64(schema.FieldYaw, r.Yaw),
			tlv.Bool(schema.FieldRelative, r.Relative),
		)
		fields = append(fields, durationFields(r.Duration)...)
	case KindSetGroupMask:
		fields = append(fields, tlv.U32(schema.FieldGroupMask, r.GroupMask))
	case KindVelocityWorld:
		fields = append(fields,
			tlv.F64(schema.FieldVelX, r.Velocity.X),
			tlv.F64(schema.FieldVelY, r.Velocity.Y),
			tlv.F64(schema.FieldVelZ, r.Velocity.Z),
			tlv.F64(schema.FieldHeight, r.Height),
			tlv.F64(schema.FieldYaw, r.Yaw),
			tlv.U64(schema.FieldStampNS, stampNS(r.Stamp)),
		)
	}
	return frame.New(messageID, msgType, tlv.EncodeFields(fields)), nil
}

// DecodeFrame is the inverse of EncodeFrame. It is what a motion service, or a
// test standing in for one, runs on each received frame.
func DecodeFrame(f frame.Frame) (Request, error) {
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Request{}, err
	}
	msgType := f.Header.MessageType
	if err := schema.Validate(msgType, fields); err != nil {
		return Request{}, err
	}

	rd := tlv.NewReader(fields)
	out := Request{AgentID: rd.String(schema.FieldAgentID)}
	readDuration := func() Duration {
		return Duration{
			Sec:     rd.I32(schema.FieldDurationSec),
			Nanosec: rd.U32(schema.FieldDurationNanosec),
		}
	}
	switch msgType {
	case schema.MsgTakeoff, schema.MsgLand:
		out.Kind = KindTakeoff
		if msgType == schema.MsgLand {
			out.Kind = KindLand
		}
		out.GroupMask = rd.U32(schema.FieldGroupMask)
		out.Height = rd.F64(schema.FieldHeight)
		out.Duration = readDuration()
	case schema.MsgGoTo:
		out.Kind = KindGoTo
		out.GroupMask = rd.U32(schema.FieldGroupMask)
		out.Goal = r3.Vec{
			X: rd.F64(schema.FieldGoalX),
			Y: rd.F64(schema.FieldGoalY),
			Z: rd.F64(schema.FieldGoalZ),
		}
		out.Yaw = rd.F64(schema.FieldYaw)
		out.Relative = rd.Bool(schema.FieldRelative)
		out.Duration = readDuration()
	case schema.MsgSetGroupMask:
		out.Kind = KindSetGroupMask
		out.GroupMask = rd.U32(schema.FieldGroupMask)
	case schema.MsgVelocityWorld:
		out.Kind = KindVelocityWorld
		out.Velocity = r3.Vec{
			X: rd.F64(schema.FieldVelX),
			Y: rd.F64(schema.FieldVelY),
			Z: rd.F64(schema.FieldVelZ),
		}
		out.Height = rd.F64(schema.FieldHeight)
		out.Yaw = rd.F64(schema.FieldYaw)
		if ns := rd.U64(schema.FieldStampNS); ns != 0 {
			out.Stamp = time.Unix(0, int64(ns))
		}
	}
	if err := rd.Err(); err != nil {
		return Request{}, err
	}
	return out, nil
}

func stampNS(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}
