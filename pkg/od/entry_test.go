package od

import "testing"

func TestAddWriteCallbackChainsRatherThanReplaces(t *testing.T) {
	e := &Entry{Name: "TEST", Type: TypeU32}

	var calls []string
	e.AddWriteCallback(func(Value) error {
		calls = append(calls, "first")
		return nil
	})
	e.AddWriteCallback(func(Value) error {
		calls = append(calls, "second")
		return nil
	})

	if err := e.Write(U32(1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected both callbacks to run in registration order, got %v", calls)
	}
}

func TestAddWriteCallbackStopsChainOnError(t *testing.T) {
	e := &Entry{Name: "TEST", Type: TypeU32}

	secondRan := false
	e.AddWriteCallback(func(Value) error { return errFirst })
	e.AddWriteCallback(func(Value) error {
		secondRan = true
		return nil
	})

	if err := e.Write(U32(1)); err != errFirst {
		t.Fatalf("expected the first callback's error, got %v", err)
	}
	if secondRan {
		t.Fatal("second callback should not run once the first returns an error")
	}
}

func TestDictionaryAddWriteCallbackChains(t *testing.T) {
	dict := NewC3Dictionary()

	var calls []string
	dict.AddWriteCallback(STATUS, func(Value) error {
		calls = append(calls, "mirror")
		return nil
	})
	dict.AddWriteCallback(STATUS, func(Value) error {
		calls = append(calls, "scheduler")
		return nil
	})

	if err := dict.Write(STATUS, dict.ByName(STATUS).Read()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected both dictionary-level subscribers to fire, got %v", calls)
	}
}

type sentinelErr struct{ msg string }

func (e *sentinelErr) Error() string { return e.msg }

var errFirst = &sentinelErr{"first callback failed"}
