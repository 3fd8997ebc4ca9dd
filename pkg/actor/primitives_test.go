package actor

import (
	"testing"
	"time"

	"github.com/jabolina/go-actor/pkg/actor/core"
	"github.com/jabolina/go-actor/pkg/actor/types"
)

func Test_Send_LocalDelivery(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	result := make(chan string, 1)
	target := node.Spawn(func(p *core.Process) {
		result <- Expect[string](p)
	})

	node.Spawn(func(p *core.Process) {
		if err := Send(p, target.Pid(), "hi"); err != nil {
			t.Errorf("unexpected send error: %v", err)
		}
	})

	select {
	case v := <-result:
		if v != "hi" {
			t.Errorf("expected %q, got %q", "hi", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func Test_ReceiveTimeout_ZeroNeverSuspends(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	done := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		defer close(done)
		if _, ok := ReceiveTimeout[int](p, 0); ok {
			t.Error("expected empty mailbox with zero timeout to report no match")
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func Test_Monitor_AlreadyDeadTargetFiresImmediately(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	deadReady := make(chan struct{})
	dead := node.Spawn(func(p *core.Process) {
		close(deadReady)
	})
	<-deadReady
	// Give the controller a moment to process the dead process's death
	// signal before the watcher monitors it.
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		defer close(done)
		ref := Monitor(p, types.OfProcess(dead.Pid()))
		notification := Expect[types.MonitorNotification](p)
		if notification.Ref != ref {
			t.Errorf("expected ref %v, got %v", ref, notification.Ref)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func Test_Register_WhereIs_Unregister(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	done := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		defer close(done)
		Register(p, "worker", p.Pid())
		if pid, ok := WhereIs(p, "worker"); !ok || pid != p.Pid() {
			t.Fatalf("expected self registered under worker, got %v ok=%v", pid, ok)
		}
		Unregister(p, "worker")
		if _, ok := WhereIs(p, "worker"); ok {
			t.Error("expected worker to be unregistered")
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func Test_NSend_DeliversToRegisteredProcess(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	result := make(chan int, 1)
	registered := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		Register(p, "sink", p.Pid())
		close(registered)
		result <- Expect[int](p)
	})
	<-registered

	done := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		defer close(done)
		if err := NSend(p, "sink", 99); err != nil {
			t.Errorf("unexpected nsend error: %v", err)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	select {
	case v := <-result:
		if v != 99 {
			t.Errorf("expected 99, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for nsend delivery")
	}
}

func Test_Terminate_EndsProcessWithKilledBySelf(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	proc := node.Spawn(func(p *core.Process) {
		Terminate()
	})

	select {
	case <-proc.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for process to terminate")
	}
	if proc.ExitReason() != types.ReasonKilledBySelf {
		t.Errorf("expected reason %q, got %q", types.ReasonKilledBySelf, proc.ExitReason())
	}
}

func Test_Catch_HandlesNonTerminationPanic(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	handled := make(chan interface{}, 1)
	proc := node.Spawn(func(p *core.Process) {
		Catch(func() {
			panic("boom")
		}, func(recovered interface{}) {
			handled <- recovered
		})
	})

	select {
	case v := <-handled:
		if v.(string) != "boom" {
			t.Errorf("expected recovered value %q, got %v", "boom", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Catch to handle the panic")
	}
	select {
	case <-proc.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for process to end normally after a handled panic")
	}
	if proc.ExitReason() != types.ReasonNormal {
		t.Errorf("expected reason %q after a handled panic, got %q", types.ReasonNormal, proc.ExitReason())
	}
}

func Test_Catch_RepropagatesTermination(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	handlerCalled := make(chan struct{})
	proc := node.Spawn(func(p *core.Process) {
		Catch(func() {
			Terminate()
		}, func(recovered interface{}) {
			close(handlerCalled)
		})
	})

	select {
	case <-proc.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for process to end")
	}
	if proc.ExitReason() != types.ReasonKilledBySelf {
		t.Errorf("expected Terminate's reason to reach the process boundary, got %q", proc.ExitReason())
	}
	select {
	case <-handlerCalled:
		t.Error("expected Catch's handler not to run for a termination condition")
	default:
	}
}

func Test_SpawnAsync_ResolvesAndReportsNewPid(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	childStarted := make(chan struct{})
	node.Resolver().Register("echo-once", func(env []byte) (interface{}, error) {
		return core.EntryPoint(func(p *core.Process) {
			close(childStarted)
		}), nil
	})

	done := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		defer close(done)
		childPid, err := SpawnAsync(p, node.Id(), types.Closure{Label: "echo-once"})
		if err != nil {
			t.Fatalf("unexpected spawn error: %v", err)
		}
		if childPid == (types.ProcessId{}) {
			t.Error("expected a non-zero child pid")
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SpawnAsync")
	}
	select {
	case <-childStarted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resolved child to run")
	}
}

func Test_UnClosure_ExposesResolverFailure(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	done := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		defer close(done)
		if _, err := UnClosure(p, types.Closure{Label: "missing"}, core.EntryPoint(nil)); err == nil {
			t.Error("expected resolving an unregistered label to fail")
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}
