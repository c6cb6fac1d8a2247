package fn

import (
	"errors"
	"testing"
)

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok result")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected unwrap: %v, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("expected error result")
	}
	if _, err := e.Unwrap(); err == nil {
		t.Fatal("expected error from unwrap")
	}
}

func TestUnwrapOr(t *testing.T) {
	if got := Err[string](errors.New("x")).UnwrapOr("fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := Ok("value").UnwrapOr("fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("expected ok")
	}
	if r := FromPair(0, errors.New("bad")); r.IsOk() {
		t.Fatal("expected err")
	}
}

func TestErrf(t *testing.T) {
	r := Errf[int]("code %d", 7)
	_, err := r.Unwrap()
	if err == nil || err.Error() != "code 7" {
		t.Fatalf("unexpected err: %v", err)
	}
}
