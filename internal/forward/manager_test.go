package forward

import (
	"testing"

	"github.com/sshfwd/sshfwd/internal/model"
)

func TestReconcileForwardsPausesVanishedPort(t *testing.T) {
	forwards := map[uint16]*model.ForwardEntry{
		5432: {RemotePort: 5432, LocalPort: 15432, Status: model.ForwardActive},
	}
	commands := ReconcileForwards(forwards, map[uint16]bool{})

	if len(commands) != 1 || commands[0].Kind != CommandPause || commands[0].RemotePort != 5432 {
		t.Fatalf("unexpected commands: %+v", commands)
	}
	if forwards[5432].Status != model.ForwardPaused {
		t.Errorf("entry status = %v, want paused", forwards[5432].Status)
	}
}

func TestReconcileForwardsReactivatesReappearedPort(t *testing.T) {
	forwards := map[uint16]*model.ForwardEntry{
		5432: {RemotePort: 5432, LocalPort: 15432, RemoteHost: "db1", Status: model.ForwardPaused},
	}
	commands := ReconcileForwards(forwards, map[uint16]bool{5432: true})

	if len(commands) != 1 || commands[0].Kind != CommandReactivate {
		t.Fatalf("unexpected commands: %+v", commands)
	}
	if commands[0].LocalPort != 15432 || commands[0].RemoteHost != "db1" {
		t.Errorf("unexpected reactivate command: %+v", commands[0])
	}
	if forwards[5432].Status != model.ForwardStarting {
		t.Errorf("entry status = %v, want starting", forwards[5432].Status)
	}
}

func TestReconcileForwardsNoOpWhenStable(t *testing.T) {
	forwards := map[uint16]*model.ForwardEntry{
		5432: {RemotePort: 5432, LocalPort: 15432, Status: model.ForwardActive},
	}
	commands := ReconcileForwards(forwards, map[uint16]bool{5432: true})
	if len(commands) != 0 {
		t.Errorf("expected no commands, got %+v", commands)
	}
}

func TestReconcileForwardsIdempotent(t *testing.T) {
	forwards := map[uint16]*model.ForwardEntry{
		5432: {RemotePort: 5432, LocalPort: 15432, Status: model.ForwardActive},
	}
	ReconcileForwards(forwards, map[uint16]bool{})
	commands := ReconcileForwards(forwards, map[uint16]bool{})
	if len(commands) != 0 {
		t.Errorf("second reconcile call should be a no-op, got %+v", commands)
	}
}
