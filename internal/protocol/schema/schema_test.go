package schema

import (
	"testing"

	"github.com/danmuck/swarmctl/internal/protocol/tlv"
	"github.com/danmuck/swarmctl/internal/testutil/testlog"
)

func landFields() []tlv.Field {
	return []tlv.Field{
		tlv.String(FieldAgentID, "cf1"),
		tlv.U32(FieldGroupMask, 0),
		tlv.F64(FieldHeight, 0),
		tlv.I32(FieldDurationSec, 2),
		tlv.U32(FieldDurationNanosec, 400000000),
	}
}

func TestValidateLandRequiredFields(t *testing.T) {
	testlog.Start(t)
	if err := Validate(MsgLand, landFields()); err != nil {
		t.Fatalf("validate land: %v", err)
	}
}

func TestValidateUnknownFieldsIgnored(t *testing.T) {
	testlog.Start(t)
	fields := append(landFields(), tlv.Field{ID: 9999, Type: tlv.TypeBytes, Value: []byte{0x01}})
	if err := Validate(MsgLand, fields); err != nil {
		t.Fatalf("validate with unknown field: %v", err)
	}
}

func TestValidateMissingRequiredDeterministic(t *testing.T) {
	testlog.Start(t)
	fields := []tlv.Field{tlv.String(FieldAgentID, "cf1")}
	err := Validate(MsgSetGroupMask, fields)
	if err == nil {
		t.Fatalf("expected error")
	}
	ve, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.FieldID != FieldGroupMask || ve.Reason != "missing required field" {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
}

func TestValidateTypeMismatchDeterministic(t *testing.T) {
	testlog.Start(t)
	fields := landFields()
	fields[2] = tlv.U32(FieldHeight, 1)
	err := Validate(MsgLand, fields)
	if err == nil {
		t.Fatalf("expected error")
	}
	ve, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.FieldID != FieldHeight || ve.Reason != "type mismatch" {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
}

func TestValidateVelocityWorldNeedsNoGroupMask(t *testing.T) {
	testlog.Start(t)
	fields := []tlv.Field{
		tlv.String(FieldAgentID, "cf1"),
		tlv.F64(FieldVelX, 0.5),
		tlv.F64(FieldVelY, 0),
		tlv.F64(FieldVelZ, 0),
		tlv.F64(FieldHeight, 1),
		tlv.F64(FieldYaw, 0),
		tlv.U64(FieldStampNS, 1),
	}
	if err := Validate(MsgVelocityWorld, fields); err != nil {
		t.Fatalf("validate velocity_world: %v", err)
	}
}

func TestValidateUnknownMessageType(t *testing.T) {
	testlog.Start(t)
	err := Validate(99, nil)
	ve, ok := err.(ValidationError)
	if !ok || ve.Reason != "unknown message_type" {
		t.Fatalf("unexpected error: %v", err)
	}
	if Name(99) != "unknown(99)" || Name(MsgGoTo) != "goto" {
		t.Fatalf("unexpected names")
	}
}
