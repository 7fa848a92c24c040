package fsm

import "testing"

func TestMachineDefault(t *testing.T) {
	m := New()
	if got := m.State(); got != StateIdle {
		t.Fatalf("state=%s, want %s", got, StateIdle)
	}
	if m.Terminal() {
		t.Fatal("Terminal()=true for fresh machine")
	}
}

func TestMachineLifecycle(t *testing.T) {
	m := New()
	if !m.TryStart() {
		t.Fatal("TryStart()=false from idle")
	}
	if got := m.State(); got != StateConnecting {
		t.Fatalf("state=%s, want %s", got, StateConnecting)
	}
	if !m.MarkConnected() {
		t.Fatal("MarkConnected()=false from connecting")
	}
	if !m.MarkClosed() {
		t.Fatal("MarkClosed()=false from connected")
	}
	if got := m.State(); got != StateClosed {
		t.Fatalf("state=%s, want %s", got, StateClosed)
	}
	if !m.Terminal() {
		t.Fatal("Terminal()=false after close")
	}
}

func TestMachineStartIsSingleUse(t *testing.T) {
	m := New()
	m.TryStart()
	if m.TryStart() {
		t.Fatal("TryStart()=true while connecting")
	}
	m.MarkConnected()
	if m.TryStart() {
		t.Fatal("TryStart()=true while connected")
	}
	m.MarkClosed()
	if m.TryStart() {
		t.Fatal("TryStart()=true after close")
	}
}

func TestMachineConnectLosesToTeardown(t *testing.T) {
	m := New()
	m.TryStart()
	m.MarkClosed()
	if m.MarkConnected() {
		t.Fatal("MarkConnected()=true after close")
	}
	if got := m.State(); got != StateClosed {
		t.Fatalf("state=%s, want %s", got, StateClosed)
	}
}

func TestMachineErrorIsPreservedOverClose(t *testing.T) {
	m := New()
	m.TryStart()
	m.MarkConnected()
	if !m.MarkError() {
		t.Fatal("MarkError()=false from connected")
	}
	if m.MarkClosed() {
		t.Fatal("MarkClosed()=true after error")
	}
	if got := m.State(); got != StateError {
		t.Fatalf("state=%s, want %s", got, StateError)
	}
}

func TestMachineLateErrorDoesNotReopenClosed(t *testing.T) {
	m := New()
	m.TryStart()
	m.MarkClosed()
	if m.MarkError() {
		t.Fatal("MarkError()=true after close")
	}
	if got := m.State(); got != StateClosed {
		t.Fatalf("state=%s, want %s", got, StateClosed)
	}
}
