package system

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func recorder(name string, log *[]string, startErr error) Func {
	return Func{
		ServiceName: name,
		OnStart: func(context.Context) error {
			*log = append(*log, "start "+name)
			return startErr
		},
		OnStop: func(context.Context) error {
			*log = append(*log, "stop "+name)
			return nil
		},
	}
}

func TestManagerOrder(t *testing.T) {
	var log []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recorder(name, &log, nil)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(recorder("a", &log, nil)); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("order = %v, want %v", log, want)
	}
}

func TestManagerStartFailureStopsStarted(t *testing.T) {
	var log []string
	m := NewManager()
	_ = m.Register(recorder("a", &log, nil))
	_ = m.Register(recorder("b", &log, errors.New("boom")))
	_ = m.Register(recorder("c", &log, nil))

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	want := []string{"start a", "start b", "stop a"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("order = %v, want %v", log, want)
	}
}
