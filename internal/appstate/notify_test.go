package appstate

import (
	"testing"

	"github.com/sshfwd/sshfwd/internal/model"
)

func makePort(port uint16, name string) model.ListeningPort {
	return model.ListeningPort{
		Protocol:  model.ProtocolTCP,
		LocalAddr: "0.0.0.0",
		Port:      port,
		Process:   &model.ProcessInfo{PID: uint32(port), Name: name, Cmdline: name, UID: 1000},
	}
}

func TestDetectPortChangesFirstScanReturnsEmpty(t *testing.T) {
	newPorts := map[uint16]bool{80: true, 443: true}
	ports := []model.ListeningPort{makePort(80, "nginx"), makePort(443, "nginx")}

	changes := DetectPortChanges(nil, newPorts, map[uint16]*model.ForwardEntry{}, ports, nil)
	if len(changes) != 0 {
		t.Errorf("expected no changes on first scan, got %+v", changes)
	}
}

func TestDetectPortChangesAppeared(t *testing.T) {
	prev := map[uint16]bool{80: true}
	current := map[uint16]bool{80: true, 443: true, 8080: true}
	newPorts := []model.ListeningPort{makePort(80, "nginx"), makePort(443, "nginx"), makePort(8080, "node")}

	changes := DetectPortChanges(prev, current, map[uint16]*model.ForwardEntry{}, newPorts, nil)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}
	if changes[0].Port != 443 || changes[0].Kind != PortAppeared {
		t.Errorf("unexpected first change: %+v", changes[0])
	}
	if changes[1].Port != 8080 || changes[1].Kind != PortAppeared {
		t.Errorf("unexpected second change: %+v", changes[1])
	}
}

func TestDetectPortChangesDisappeared(t *testing.T) {
	prev := map[uint16]bool{80: true, 443: true, 8080: true}
	current := map[uint16]bool{80: true}
	oldPorts := []model.ListeningPort{makePort(80, "nginx"), makePort(443, "nginx"), makePort(8080, "node")}

	changes := DetectPortChanges(prev, current, map[uint16]*model.ForwardEntry{}, nil, oldPorts)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}
	if changes[0].Port != 443 || changes[0].Kind != PortDisappeared {
		t.Errorf("unexpected first change: %+v", changes[0])
	}
	if changes[1].Port != 8080 || changes[1].Kind != PortDisappeared {
		t.Errorf("unexpected second change: %+v", changes[1])
	}
}

func TestDetectPortChangesReactivated(t *testing.T) {
	prev := map[uint16]bool{80: true}
	current := map[uint16]bool{80: true, 5432: true}
	forwards := map[uint16]*model.ForwardEntry{
		5432: {LocalPort: 5432, Status: model.ForwardStarting},
	}
	newPorts := []model.ListeningPort{makePort(80, "nginx"), makePort(5432, "postgres")}

	changes := DetectPortChanges(prev, current, forwards, newPorts, nil)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %+v", changes)
	}
	if changes[0].Port != 5432 || changes[0].Kind != PortReactivated || changes[0].ProcessName != "postgres" {
		t.Errorf("unexpected change: %+v", changes[0])
	}
}

func TestDetectPortChangesNoChangesWhenSame(t *testing.T) {
	prev := map[uint16]bool{80: true, 443: true}
	current := map[uint16]bool{80: true, 443: true}
	changes := DetectPortChanges(prev, current, map[uint16]*model.ForwardEntry{}, nil, nil)
	if len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
}

func TestFormatNotificationBodySingleWithProcess(t *testing.T) {
	changes := []PortChange{{Port: 8080, Kind: PortAppeared, ProcessName: "node"}}
	if got, want := FormatNotificationBody(changes), "+ 8080 (node)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatNotificationBodySingleWithoutProcess(t *testing.T) {
	changes := []PortChange{{Port: 443, Kind: PortDisappeared}}
	if got, want := FormatNotificationBody(changes), "- 443"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatNotificationBodyBulkDropsProcessNames(t *testing.T) {
	changes := []PortChange{
		{Port: 80, Kind: PortAppeared},
		{Port: 443, Kind: PortAppeared, ProcessName: "nginx"},
		{Port: 3000, Kind: PortDisappeared, ProcessName: "app"},
	}
	if got, want := FormatNotificationBody(changes), "+ 80, 443\n- 3000"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
