package tools

import (
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/pkg/voicelink"
)

type mixerCall struct {
	op     string
	key    string
	volume int
}

type fakeMixer struct {
	calls []mixerCall
}

func (f *fakeMixer) Play(key string, volume int) {
	f.calls = append(f.calls, mixerCall{op: "play", key: key, volume: volume})
}

func (f *fakeMixer) AdjustVolume(volume int) {
	f.calls = append(f.calls, mixerCall{op: "volume", volume: volume})
}

func (f *fakeMixer) Stop() {
	f.calls = append(f.calls, mixerCall{op: "stop"})
}

func dispatchArgs(t *testing.T, m *fakeMixer, args string) (Result, bool) {
	t.Helper()
	d := NewDispatcher(m, zap.NewNop())
	return d.Dispatch(voicelink.ToolCall{
		ID:        "inv-1",
		Name:      FunctionAmbience,
		Arguments: json.RawMessage(args),
	})
}

func TestDispatchPlay(t *testing.T) {
	m := &fakeMixer{}
	res, ok := dispatchArgs(t, m, `{"action":"play","sound":"rain","volume":30}`)
	if !ok {
		t.Fatal("ok=false, want result")
	}
	if res.ID != "inv-1" || res.Name != FunctionAmbience {
		t.Fatalf("result=%+v, want id inv-1 name %s", res, FunctionAmbience)
	}
	if !strings.Contains(res.Output, "rain") {
		t.Fatalf("output=%q, want track name", res.Output)
	}
	want := []mixerCall{{op: "play", key: "rain", volume: 30}}
	if len(m.calls) != 1 || m.calls[0] != want[0] {
		t.Fatalf("calls=%v, want %v", m.calls, want)
	}
}

func TestDispatchPlayDefaultsVolume(t *testing.T) {
	m := &fakeMixer{}
	if _, ok := dispatchArgs(t, m, `{"action":"play","sound":"wind"}`); !ok {
		t.Fatal("ok=false, want result")
	}
	if len(m.calls) != 1 || m.calls[0].volume != defaultVolume {
		t.Fatalf("calls=%v, want play at default volume", m.calls)
	}
}

func TestDispatchVolume(t *testing.T) {
	m := &fakeMixer{}
	res, ok := dispatchArgs(t, m, `{"action":"volume","volume":70}`)
	if !ok {
		t.Fatal("ok=false, want result")
	}
	if !strings.Contains(res.Output, "70") {
		t.Fatalf("output=%q, want volume in ack", res.Output)
	}
	want := mixerCall{op: "volume", volume: 70}
	if len(m.calls) != 1 || m.calls[0] != want {
		t.Fatalf("calls=%v, want %v", m.calls, want)
	}
}

func TestDispatchZeroVolumeIsNotAbsent(t *testing.T) {
	m := &fakeMixer{}
	if _, ok := dispatchArgs(t, m, `{"action":"volume","volume":0}`); !ok {
		t.Fatal("ok=false, want result")
	}
	want := mixerCall{op: "volume", volume: 0}
	if len(m.calls) != 1 || m.calls[0] != want {
		t.Fatalf("calls=%v, want %v", m.calls, want)
	}
}

func TestDispatchStop(t *testing.T) {
	m := &fakeMixer{}
	res, ok := dispatchArgs(t, m, `{"action":"stop"}`)
	if !ok {
		t.Fatal("ok=false, want result")
	}
	if res.Output != "ambience stopped" {
		t.Fatalf("output=%q, want ambience stopped", res.Output)
	}
	if len(m.calls) != 1 || m.calls[0].op != "stop" {
		t.Fatalf("calls=%v, want stop", m.calls)
	}
}

func TestDispatchUnknownFunctionProducesNoResult(t *testing.T) {
	m := &fakeMixer{}
	d := NewDispatcher(m, zap.NewNop())
	_, ok := d.Dispatch(voicelink.ToolCall{ID: "inv-2", Name: "openWindow"})
	if ok {
		t.Fatal("ok=true for unknown function, want ignored")
	}
	if len(m.calls) != 0 {
		t.Fatalf("calls=%v, want none", m.calls)
	}
}

func TestDispatchUnknownTrackStillAcknowledges(t *testing.T) {
	// Track validity is the mixer's concern; the dispatcher must acknowledge
	// regardless so the remote side sees the call complete.
	m := &fakeMixer{}
	res, ok := dispatchArgs(t, m, `{"action":"play","sound":"unknown_key","volume":30}`)
	if !ok {
		t.Fatal("ok=false, want acknowledgement")
	}
	if res.ID != "inv-1" {
		t.Fatalf("result id=%q, want inv-1", res.ID)
	}
}

func TestDispatchInvalidArgumentsStillAcknowledges(t *testing.T) {
	m := &fakeMixer{}
	res, ok := dispatchArgs(t, m, `{"action":`)
	if !ok {
		t.Fatal("ok=false, want acknowledgement")
	}
	if res.Output != "ambience unchanged" {
		t.Fatalf("output=%q, want ambience unchanged", res.Output)
	}
	if len(m.calls) != 0 {
		t.Fatalf("calls=%v, want none", m.calls)
	}
}

func TestDispatchPlayWithoutSoundIsRejected(t *testing.T) {
	m := &fakeMixer{}
	res, ok := dispatchArgs(t, m, `{"action":"play","volume":50}`)
	if !ok {
		t.Fatal("ok=false, want acknowledgement")
	}
	if res.Output != "ambience unchanged" {
		t.Fatalf("output=%q, want ambience unchanged", res.Output)
	}
	if len(m.calls) != 0 {
		t.Fatalf("calls=%v, want none", m.calls)
	}
}

func TestDeclarationsEmbedKnownSounds(t *testing.T) {
	decls := Declarations([]string{"rain", "wind"})
	if len(decls) != 1 || decls[0].Name != FunctionAmbience {
		t.Fatalf("decls=%v, want single %s", decls, FunctionAmbience)
	}
	props, ok := decls[0].Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatal("parameters missing properties object")
	}
	sound, ok := props["sound"].(map[string]any)
	if !ok {
		t.Fatal("parameters missing sound property")
	}
	enum, ok := sound["enum"].([]string)
	if !ok || len(enum) != 2 || enum[0] != "rain" || enum[1] != "wind" {
		t.Fatalf("sound enum=%v, want [rain wind]", sound["enum"])
	}
}
