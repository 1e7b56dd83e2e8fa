package rtos

import (
	"errors"
	"testing"

	"github.com/ehrlich-b/rtos-core/internal/constants"
)

func TestStructuredError(t *testing.T) {
	err := NewError("SuspendCondition", constants.StatusConditionTimeout, "no resumer within deadline")

	if err.Op != "SuspendCondition" {
		t.Errorf("Expected Op=SuspendCondition, got %s", err.Op)
	}
	if err.Status != constants.StatusConditionTimeout {
		t.Errorf("Expected Status=StatusConditionTimeout, got %s", err.Status)
	}

	expected := "rtos: SuspendCondition: no resumer within deadline (status=CONDITION_TIMEOUT)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestTaskError(t *testing.T) {
	err := NewTaskError("ResumeCondition", "worker", constants.StatusNetThreshold, "buffer pool below reserve")

	if err.Task != "worker" {
		t.Errorf("Expected Task=worker, got %s", err.Task)
	}

	expected := "rtos: ResumeCondition: buffer pool below reserve (task=worker)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestFDError(t *testing.T) {
	err := NewFDError("Write", "uart0", constants.StatusFSBufferNoSpace, "no free chunk")

	if err.FD != "uart0" {
		t.Errorf("Expected FD=uart0, got %s", err.FD)
	}
	if err.Status != constants.StatusFSBufferNoSpace {
		t.Errorf("Expected Status=StatusFSBufferNoSpace, got %s", err.Status)
	}
}

func TestWrapError(t *testing.T) {
	inner := NewFDError("Read", "eth0", constants.StatusNetLinkDown, "carrier lost")
	wrapped := WrapError("DHCPClient.poll", inner)

	if wrapped.Status != constants.StatusNetLinkDown {
		t.Errorf("Expected Status=StatusNetLinkDown, got %s", wrapped.Status)
	}
	if wrapped.FD != "eth0" {
		t.Errorf("Expected FD=eth0 preserved through wrap, got %s", wrapped.FD)
	}
	if wrapped.Op != "DHCPClient.poll" {
		t.Errorf("Expected Op to be replaced by wrap, got %s", wrapped.Op)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("op", nil) != nil {
		t.Error("WrapError(op, nil) should return nil")
	}
}

func TestErrorIsByStatus(t *testing.T) {
	a := NewError("a", constants.StatusNetInvalidHeader, "bad length")
	b := NewError("b", constants.StatusNetInvalidHeader, "different message, same status")
	c := NewError("c", constants.StatusNetInvalidCsum, "checksum mismatch")

	if !errors.Is(a, b) {
		t.Error("expected errors with the same Status to satisfy errors.Is")
	}
	if errors.Is(a, c) {
		t.Error("expected errors with different Status to not satisfy errors.Is")
	}
}

func TestIsStatus(t *testing.T) {
	err := NewError("Alloc", constants.StatusFSNoResource, "no page satisfies request")

	if !IsStatus(err, constants.StatusFSNoResource) {
		t.Error("IsStatus should return true for matching status")
	}
	if IsStatus(err, constants.StatusFSBufferNoSpace) {
		t.Error("IsStatus should return false for non-matching status")
	}
	if IsStatus(nil, constants.StatusFSNoResource) {
		t.Error("IsStatus should return false for nil error")
	}
}

func TestIsTransient(t *testing.T) {
	transient := []constants.Status{
		constants.StatusConditionTimeout,
		constants.StatusNetBufferConsumed,
		constants.StatusNetThreshold,
	}
	for _, s := range transient {
		if !IsTransient(s) {
			t.Errorf("expected %s to be transient", s)
		}
	}

	if IsTransient(constants.StatusNetInvalidHeader) {
		t.Error("StatusNetInvalidHeader should not be transient")
	}
}
