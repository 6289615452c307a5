package observ_test

import (
	"strings"
	"testing"

	"ctfe/internal/observ"
)

func TestTimerReport(t *testing.T) {
	timer := observ.NewTimer()
	if r := timer.Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("empty timer report = %+v", r)
	}

	done := timer.Track("load")
	done("3 files")
	idx := timer.Begin("run")
	timer.End(idx, "")
	timer.End(42, "ignored")

	r := timer.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "load" || r.Phases[0].Note != "3 files" || r.Phases[1].Name != "run" {
		t.Fatalf("report = %+v", r)
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("total %.3f is below a phase %.3f", r.TotalMS, r.Phases[0].DurationMS)
	}

	s := timer.Summary()
	for _, want := range []string{"timings:\n", "load", "// 3 files", "total"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
