package trace_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"ctfe/internal/trace"
)

func TestParseLevel(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want trace.Level
	}{
		{"off", trace.LevelOff},
		{"Phase", trace.LevelPhase},
		{"DEBUG", trace.LevelDebug},
	} {
		got, err := trace.ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseLevel(%q) = %s, %v", tt.in, got, err)
		}
	}
	if _, err := trace.ParseLevel("loud"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]trace.Format{
		"":       trace.FormatAuto,
		"text":   trace.FormatText,
		"NDJSON": trace.FormatNDJSON,
		"chrome": trace.FormatChrome,
	} {
		got, err := trace.ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := trace.ParseFormat("xml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	if trace.LevelPhase.ShouldEmit(trace.ScopeNode) {
		t.Fatal("phase level must drop node events")
	}
	if !trace.LevelDetail.ShouldEmit(trace.ScopeModule) || trace.LevelDetail.ShouldEmit(trace.ScopeNode) {
		t.Fatal("detail level keeps scenario events only")
	}
	if !trace.LevelDebug.ShouldEmit(trace.ScopeNode) {
		t.Fatal("debug level keeps everything")
	}
}

func TestRingKeepsNewestEvents(t *testing.T) {
	ring := trace.NewRingTracer(3, trace.LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		trace.Point(ring, trace.ScopeNode, name, "", 0)
	}
	events := ring.Snapshot()
	if len(events) != 3 {
		t.Fatalf("kept %d events, want 3", len(events))
	}
	for i, want := range []string{"c", "d", "e"} {
		if events[i].Name != want {
			t.Fatalf("event %d = %q, want %q", i, events[i].Name, want)
		}
	}
	if events[0].Seq >= events[2].Seq {
		t.Fatalf("sequence numbers not increasing: %d, %d", events[0].Seq, events[2].Seq)
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, trace.FormatText); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Fatalf("dump wrote %d lines, want 3", got)
	}
}

func TestSpanCarriesExtras(t *testing.T) {
	ring := trace.NewRingTracer(8, trace.LevelDebug)
	span := trace.Begin(ring, trace.ScopeNode, "read_discriminant", 0)
	if span.ID() == 0 {
		t.Fatal("enabled tracer returned an inert span")
	}
	span.WithExtra("variant", "1").End("ok")

	events := ring.Snapshot()
	if len(events) != 2 || events[0].Kind != trace.KindSpanBegin || events[1].Kind != trace.KindSpanEnd {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[1].Extra["variant"] != "1" || events[1].Detail != "ok" {
		t.Fatalf("end event lost its payload: %+v", events[1])
	}

	quiet := trace.NewRingTracer(8, trace.LevelPhase)
	if trace.Begin(quiet, trace.ScopeNode, "skipped", 0).ID() != 0 {
		t.Fatal("span below the level must be inert")
	}
	if len(quiet.Snapshot()) != 0 {
		t.Fatal("filtered span was recorded")
	}
}

func TestFormatEvent(t *testing.T) {
	ev := &trace.Event{
		Time:   time.Unix(10, 0),
		Seq:    7,
		Kind:   trace.KindSpanEnd,
		Scope:  trace.ScopeModule,
		SpanID: 3,
		Name:   "scenario:niche.toml",
		Detail: "ok",
		Extra:  map[string]string{"z": "1", "a": "2"},
	}

	text := string(trace.FormatEvent(ev, trace.FormatText))
	if !strings.Contains(text, "scenario:niche.toml (ok) {a=2, z=1}") {
		t.Fatalf("text = %q", text)
	}

	var nd map[string]any
	if err := json.Unmarshal(trace.FormatEvent(ev, trace.FormatNDJSON), &nd); err != nil {
		t.Fatal(err)
	}
	if nd["kind"] != "end" || nd["scope"] != "module" || nd["detail"] != "ok" {
		t.Fatalf("ndjson = %v", nd)
	}

	var ch struct {
		Ph   string            `json:"ph"`
		Ts   int64             `json:"ts"`
		Args map[string]string `json:"args"`
	}
	if err := json.Unmarshal(trace.FormatEvent(ev, trace.FormatChrome), &ch); err != nil {
		t.Fatal(err)
	}
	if ch.Ph != "E" || ch.Ts != 10_000_000 || ch.Args["detail"] != "ok" || ch.Args["a"] != "2" {
		t.Fatalf("chrome = %+v", ch)
	}
	if _, ok := ev.Extra["detail"]; ok {
		t.Fatal("chrome formatting mutated the event extras")
	}
}

func TestStreamChromeIsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	st := trace.NewStreamTracer(&buf, trace.LevelDebug, trace.FormatChrome)
	trace.Begin(st, trace.ScopeDriver, "run", 0).End("")
	trace.Point(st, trace.ScopeNode, "lift", "u32", 0)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("chrome stream is not JSON: %v\n%s", err, buf.String())
	}
	if len(doc.TraceEvents) != 3 {
		t.Fatalf("got %d events, want 3", len(doc.TraceEvents))
	}
}

func TestMultiFansOut(t *testing.T) {
	var buf bytes.Buffer
	ring := trace.NewRingTracer(4, trace.LevelDebug)
	multi := trace.NewMultiTracer(trace.LevelDebug, trace.NewStreamTracer(&buf, trace.LevelDebug, trace.FormatText), ring)
	trace.Point(multi, trace.ScopeNode, "lift", "", 0)

	if r, ok := multi.Ring(); !ok || r != ring {
		t.Fatal("Ring did not find the ring tracer")
	}
	if len(ring.Snapshot()) != 1 || !strings.Contains(buf.String(), "lift") {
		t.Fatalf("event not delivered to both tracers: ring=%d stream=%q", len(ring.Snapshot()), buf.String())
	}
}

func TestNewHonorsLevelAndMode(t *testing.T) {
	tr, err := trace.New(trace.Config{Level: trace.LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("off level should give a disabled tracer: %v", err)
	}
	tr, err = trace.New(trace.Config{Level: trace.LevelPhase, Mode: trace.ModeRing, RingSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*trace.RingTracer); !ok {
		t.Fatalf("ring mode returned %T", tr)
	}
	if _, err := trace.ParseMode("disk"); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}

func TestFormatForPath(t *testing.T) {
	for path, want := range map[string]trace.Format{
		"":                trace.FormatText,
		"-":               trace.FormatText,
		"run.ndjson":      trace.FormatNDJSON,
		"out/run.JSON":    trace.FormatChrome,
		"run.chrome.json": trace.FormatChrome,
		"trace.log":       trace.FormatText,
	} {
		if got := trace.FormatForPath(path); got != want {
			t.Fatalf("FormatForPath(%q) = %d, want %d", path, got, want)
		}
	}
}

func TestStartSpanNestsUnderContext(t *testing.T) {
	ring := trace.NewRingTracer(8, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	outer, ctx := trace.StartSpan(ctx, trace.ScopeModule, "scenario")
	inner, _ := trace.StartSpan(ctx, trace.ScopeNode, "query")
	inner.End("")
	outer.End("")

	events := ring.Snapshot()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[1].ParentID != outer.ID() || events[0].ParentID != 0 {
		t.Fatalf("query span parent = %d, want %d", events[1].ParentID, outer.ID())
	}
	if trace.FromContext(context.Background()) != trace.Nop {
		t.Fatal("bare context must yield the nop tracer")
	}
}

func TestDumpRing(t *testing.T) {
	ring := trace.NewRingTracer(4, trace.LevelDebug)
	multi := trace.NewMultiTracer(trace.LevelDebug, trace.NewStreamTracer(io.Discard, trace.LevelDebug, trace.FormatText), ring)

	var buf bytes.Buffer
	if ok, err := trace.DumpRing(&buf, multi, "the bug", trace.FormatText); ok || err != nil || buf.Len() != 0 {
		t.Fatalf("empty ring dumped: ok=%v err=%v %q", ok, err, buf.String())
	}

	trace.Point(multi, trace.ScopeNode, "read_discriminant", "Shape", 0)
	trace.Point(multi, trace.ScopeNode, "read_str", "", 0)
	ok, err := trace.DumpRing(&buf, multi, "the bug", trace.FormatText)
	if !ok || err != nil {
		t.Fatalf("DumpRing = %v, %v", ok, err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "trace: last 2 events before the bug\n") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "read_discriminant (Shape)") || !strings.Contains(out, "read_str") {
		t.Errorf("events missing:\n%s", out)
	}

	stream := trace.NewStreamTracer(io.Discard, trace.LevelDebug, trace.FormatText)
	if ok, _ := trace.DumpRing(&buf, stream, "x", trace.FormatText); ok {
		t.Errorf("stream tracer reported a ring")
	}
	if r, ok := trace.RingOf(ring); !ok || r != ring {
		t.Errorf("RingOf did not return the ring itself")
	}
}

func TestHeartbeatCarriesStatus(t *testing.T) {
	ring := trace.NewRingTracer(8, trace.LevelPhase)
	hb := trace.StartHeartbeat(ring, time.Hour)
	if hb == nil {
		t.Fatal("StartHeartbeat returned nil for an enabled tracer")
	}
	hb.Beat(1)
	hb.SetStatus(func() string { return "2/5 scenarios" })
	hb.Beat(2)
	hb.Stop()
	hb.Stop()

	events := ring.Snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != trace.KindHeartbeat || !strings.HasPrefix(events[0].Detail, "#1 +") {
		t.Errorf("first beat = %+v", events[0])
	}
	if !strings.HasPrefix(events[1].Detail, "#2 +") || !strings.HasSuffix(events[1].Detail, " 2/5 scenarios") {
		t.Errorf("second beat detail = %q", events[1].Detail)
	}

	var off *trace.Heartbeat = trace.StartHeartbeat(trace.Nop, time.Second)
	if off != nil {
		t.Fatal("disabled tracer started a heartbeat")
	}
	off.SetStatus(func() string { return "" })
	off.Beat(1)
	off.Stop()
}
