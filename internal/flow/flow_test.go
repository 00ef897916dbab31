package flow

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/go-logr/logr"
)

func record(trace *[]string, name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*trace = append(*trace, name)
		return err
	}
}

func TestOrderFollowsNeedsThenDeclaration(t *testing.T) {
	var trace []string
	g := New(logr.Discard())
	g.MustAdd(Step{Name: "start", Needs: []string{"stop", "stage"}, Run: record(&trace, "start", nil)})
	g.MustAdd(Step{Name: "build", Run: record(&trace, "build", nil)})
	g.MustAdd(Step{Name: "stop", Run: record(&trace, "stop", nil)})
	g.MustAdd(Step{Name: "stage", Needs: []string{"build"}, Run: record(&trace, "stage", nil)})

	order, err := g.Order()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	want := []string{"build", "stop", "stage", "start"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order=%v, want %v", order, want)
	}
	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace=%v, want %v", trace, want)
	}
}

func TestFailureAbortsRemainingSteps(t *testing.T) {
	var trace []string
	boom := errors.New("compile failed")
	g := New(logr.Discard())
	g.MustAdd(Step{Name: "build", Run: record(&trace, "build", boom)})
	g.MustAdd(Step{Name: "stop", Needs: []string{"build"}, Run: record(&trace, "stop", nil)})
	g.MustAdd(Step{Name: "start", Needs: []string{"stop"}, Run: record(&trace, "start", nil)})

	err := g.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want %v", err, boom)
	}
	if err.Error() != "build: compile failed" {
		t.Fatalf("err=%q", err.Error())
	}
	if !reflect.DeepEqual(trace, []string{"build"}) {
		t.Fatalf("trace=%v", trace)
	}
}

func TestCycleIsReported(t *testing.T) {
	noop := func(context.Context) error { return nil }
	g := New(logr.Discard())
	g.MustAdd(Step{Name: "tag", Needs: []string{"push"}, Run: noop})
	g.MustAdd(Step{Name: "push", Needs: []string{"tag"}, Run: noop})
	if _, err := g.Order(); !errors.Is(err, ErrCycle) {
		t.Fatalf("err=%v, want ErrCycle", err)
	}
	if err := g.Run(context.Background()); !errors.Is(err, ErrCycle) {
		t.Fatalf("run err=%v, want ErrCycle", err)
	}
}

func TestAddRejectsBadSteps(t *testing.T) {
	noop := func(context.Context) error { return nil }
	g := New(logr.Discard())
	if err := g.Add(Step{Name: "", Run: noop}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := g.Add(Step{Name: "a"}); err == nil {
		t.Fatalf("expected error for missing action")
	}
	if err := g.Add(Step{Name: "a", Run: noop}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Add(Step{Name: "a", Run: noop}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	g.MustAdd(Step{Name: "b", Needs: []string{"missing"}, Run: noop})
	if _, err := g.Order(); err == nil {
		t.Fatalf("expected missing dependency error")
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	var trace []string
	g := New(logr.Discard())
	g.MustAdd(Step{Name: "a", Run: record(&trace, "a", nil)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if len(trace) != 0 {
		t.Fatalf("trace=%v", trace)
	}
}
