package core

import (
	"testing"
	"time"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

func Test_TypedChannel_FIFO(t *testing.T) {
	ch := NewTypedChannel[int]()
	_ = ch.Push(1)
	_ = ch.Push(2)
	_ = ch.Push(3)

	for _, want := range []int{1, 2, 3} {
		if got := ch.Receive(); got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func Test_TypedChannel_ReceiveBlocksUntilPush(t *testing.T) {
	ch := NewTypedChannel[string]()
	result := make(chan string, 1)
	go func() { result <- ch.Receive() }()

	time.Sleep(20 * time.Millisecond)
	_ = ch.Push("late")

	select {
	case v := <-result:
		if v != "late" {
			t.Errorf("expected %q, got %q", "late", v)
		}
	case <-time.After(time.Second):
		t.Fatal("receive did not wake on push")
	}
}

// Test_BiasedPort_PrefersEarliestReady mirrors the biased-merge
// tie-break: when every port already has a pending value, the earliest
// one in the list wins.
func Test_BiasedPort_PrefersEarliestReady(t *testing.T) {
	a := NewTypedChannel[string]()
	b := NewTypedChannel[string]()
	_ = a.Push("a")
	_ = b.Push("b")

	merged := MergePortsBiased[string]([]ReceivePort[string]{NewSinglePort(a), NewSinglePort(b)})
	if got := merged.Receive(); got != "a" {
		t.Errorf("expected biased merge to prefer the earlier port, got %q", got)
	}
	if got := merged.Receive(); got != "b" {
		t.Errorf("expected second read to drain the remaining port, got %q", got)
	}
}

// Test_RoundRobinPort_Fairness mirrors spec.md's round-robin scenario:
// three ports each holding one message are read in send order, and a
// fourth send to only the first port is picked up on the next read.
func Test_RoundRobinPort_Fairness(t *testing.T) {
	a := NewTypedChannel[string]()
	b := NewTypedChannel[string]()
	c := NewTypedChannel[string]()
	_ = a.Push("a")
	_ = b.Push("b")
	_ = c.Push("c")

	merged := MergePortsRR[string]([]ReceivePort[string]{NewSinglePort(a), NewSinglePort(b), NewSinglePort(c)})
	for _, want := range []string{"a", "b", "c"} {
		if got := merged.Receive(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}

	_ = a.Push("d")
	if got := merged.Receive(); got != "d" {
		t.Errorf("expected fourth read %q, got %q", "d", got)
	}
}

func Test_TypedChannel_PushAfterCloseFails(t *testing.T) {
	ch := NewTypedChannel[int]()
	ch.Close()
	if err := ch.Push(1); err == nil {
		t.Error("expected push after close to fail")
	}
}

func Test_ChannelSink_DecodesAndPushes(t *testing.T) {
	ch := NewTypedChannel[int]()
	sink := NewChannelSink(ch)

	envelope, err := types.CreateMessage(7)
	if err != nil {
		t.Fatalf("failed creating envelope: %v", err)
	}
	if err := sink.push(envelope); err != nil {
		t.Fatalf("failed pushing through sink: %v", err)
	}
	if got := ch.Receive(); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}
