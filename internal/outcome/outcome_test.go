package outcome

import (
	"errors"
	"testing"
)

func TestOk(t *testing.T) {
	o := Ok([]string{"a"})

	if !o.Succeeded() {
		t.Error("Ok outcome should succeed")
	}
	if o.Err() != nil {
		t.Errorf("Err() = %v, want nil", o.Err())
	}
	v, ok := o.Value()
	if !ok || len(v) != 1 {
		t.Errorf("Value() = %v, %v", v, ok)
	}
}

func TestOk_EmptyValueStillSucceeds(t *testing.T) {
	o := Ok[[]string](nil)
	if !o.Succeeded() {
		t.Error("empty Ok outcome should succeed")
	}
	if _, ok := o.Value(); !ok {
		t.Error("Value() should be ok for empty success")
	}
}

func TestFail(t *testing.T) {
	boom := errors.New("boom")
	o := Fail[int](boom)

	if o.Succeeded() {
		t.Error("Fail outcome should not succeed")
	}
	if !errors.Is(o.Err(), boom) {
		t.Errorf("Err() = %v", o.Err())
	}
	if _, ok := o.Value(); ok {
		t.Error("Value() should not be ok for failure")
	}
}

func TestFail_NilErrorStillFails(t *testing.T) {
	o := Fail[int](nil)
	if o.Succeeded() {
		t.Error("Fail(nil) must not succeed")
	}
	if o.Err() == nil {
		t.Error("Fail(nil) must carry an error")
	}
}

func TestPartial_KeepsGatheredButHidesValue(t *testing.T) {
	o := Partial([]int{1, 2}, errors.New("course 3 failed"))

	if o.Succeeded() {
		t.Error("Partial outcome should not succeed")
	}
	if _, ok := o.Value(); ok {
		t.Error("Value() should not expose partial data")
	}
	if got := o.Gathered(); len(got) != 2 {
		t.Errorf("Gathered() = %v, want 2 items", got)
	}

	v, err := o.Unpack()
	if err == nil || len(v) != 2 {
		t.Errorf("Unpack() = %v, %v", v, err)
	}
}

func TestPartial_NilErrorStillFails(t *testing.T) {
	if Partial(1, nil).Succeeded() {
		t.Error("Partial(v, nil) must not succeed")
	}
}

func TestFrom(t *testing.T) {
	if !From(1, nil).Succeeded() {
		t.Error("From(v, nil) should succeed")
	}
	o := From(1, errors.New("x"))
	if o.Succeeded() {
		t.Error("From(v, err) should fail")
	}
	if o.Gathered() != 0 {
		t.Error("From(v, err) should discard v")
	}
}
