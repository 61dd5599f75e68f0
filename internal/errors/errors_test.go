package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindConfigInvalid, "invalid input")
	if err.Error() != "invalid input" {
		t.Errorf("expected 'invalid input', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindFatal, "failed to validate")
	if wrapped.Error() != "failed to validate: invalid input" {
		t.Errorf("expected 'failed to validate: invalid input', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindConfigInvalid, "invalid input")
	if GetKind(err) != KindConfigInvalid {
		t.Errorf("expected KindConfigInvalid, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindFatal, "failed")
	if GetKind(wrapped) != KindFatal {
		t.Errorf("expected KindFatal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindConfigInvalid, "invalid input")
	err = Attr(err, "field", "port")
	err = Attr(err, "value", 80)

	attrs := GetAttributes(err)
	if attrs["field"] != "port" {
		t.Errorf("expected port, got %v", attrs["field"])
	}
	if attrs["value"] != 80 {
		t.Errorf("expected 80, got %v", attrs["value"])
	}

	wrapped := Wrap(err, KindFatal, "failed")
	wrapped = Attr(wrapped, "operation", "start")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["field"] != "port" || allAttrs["operation"] != "start" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}

func TestTagAndClass(t *testing.T) {
	err := New(KindTransient, "accept failed")
	err = Tag(err, 7)
	err = Class(err, "transient")

	tag, ok := GetTag(err)
	if !ok || tag != 7 {
		t.Errorf("expected tag 7, got %v (ok=%v)", tag, ok)
	}

	class, ok := GetClass(err)
	if !ok || class != "transient" {
		t.Errorf("expected class transient, got %v (ok=%v)", class, ok)
	}

	if _, ok := GetTag(errors.New("std error")); ok {
		t.Errorf("expected no tag on a plain error")
	}
}
