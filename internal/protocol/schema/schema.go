// Package schema names the motion message types and fields carried on the
// wire and enforces their required-field contracts.
package schema

import (
	"fmt"

	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/protocol/tlv"
)

// Message type IDs.
const (
	MsgTakeoff       uint32 = 1
	MsgLand          uint32 = 2
	MsgGoTo          uint32 = 3
	MsgSetGroupMask  uint32 = 4
	MsgVelocityWorld uint32 = 5
)

// Field IDs.
const (
	FieldAgentID   uint16 = 1
	FieldGroupMask uint16 = 2
	FieldStampNS   uint16 = 3

	FieldHeight          uint16 = 100
	FieldDurationSec     uint16 = 101
	FieldDurationNanosec uint16 = 102

	FieldGoalX    uint16 = 200
	FieldGoalY    uint16 = 201
	FieldGoalZ    uint16 = 202
	FieldYaw      uint16 = 203
	FieldRelative uint16 = 204

	FieldVelX uint16 = 300
	FieldVelY uint16 = 301
	FieldVelZ uint16 = 302
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var (
	addressing = []Requirement{
		{FieldAgentID, tlv.TypeString},
		{FieldGroupMask, tlv.TypeU32},
	}
	duration = []Requirement{
		{FieldDurationSec, tlv.TypeI32},
		{FieldDurationNanosec, tlv.TypeU32},
	}
)

func join(parts ...[]Requirement) []Requirement {
	var out []Requirement
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var requirements = map[uint32][]Requirement{
	MsgTakeoff: join(addressing, []Requirement{{FieldHeight, tlv.TypeF64}}, duration),
	MsgLand:    join(addressing, []Requirement{{FieldHeight, tlv.TypeF64}}, duration),
	MsgGoTo: join(addressing, []Requirement{
		{FieldGoalX, tlv.TypeF64},
		{FieldGoalY, tlv.TypeF64},
		{FieldGoalZ, tlv.TypeF64},
		{FieldYaw, tlv.TypeF64},
		{FieldRelative, tlv.TypeBool},
	}, duration),
	MsgSetGroupMask: addressing,
	MsgVelocityWorld: {
		{FieldAgentID, tlv.TypeString},
		{FieldVelX, tlv.TypeF64},
		{FieldVelY, tlv.TypeF64},
		{FieldVelZ, tlv.TypeF64},
		{FieldHeight, tlv.TypeF64},
		{FieldYaw, tlv.TypeF64},
		{FieldStampNS, tlv.TypeU64},
	},
}

// Name returns a short label for a message type, used in logs and metrics.
func Name(messageType uint32) string {
	switch messageType {
	case MsgTakeoff:
		return "takeoff"
	case MsgLand:
		return "land"
	case MsgGoTo:
		return "goto"
	case MsgSetGroupMask:
		return "set_group_mask"
	case MsgVelocityWorld:
		return "velocity_world"
	default:
		return fmt.Sprintf("unknown(%d)", messageType)
	}
}

// Validate enforces required fields and required field types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	logs.Tracef("schema.Validate message_type=%d fields=%d", messageType, len(fields))
	reqs, ok := requirements[messageType]
	if !ok {
		logs.Errf("schema.Validate unknown message_type=%d", messageType)
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			logs.Errf(
				"schema.Validate missing field message_type=%d field_id=%d",
				messageType,
				req.ID,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			logs.Errf(
				"schema.Validate type mismatch message_type=%d field_id=%d got=%d want=%d",
				messageType,
				req.ID,
				f.Type,
				req.Type,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
