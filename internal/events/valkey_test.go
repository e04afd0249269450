package events

import (
	"encoding/json"
	"testing"
)

func TestValkeyPublisher_DecodeSkipsOwnEvents(t *testing.T) {
	p := &ValkeyPublisher{origin: "instance-a", local: NewBroker(1)}

	own := New(AssignmentCompleted, "assignment:3", 1, nil)
	own.Origin = "instance-a"
	remote := New(AssignmentCompleted, "assignment:4", 2, nil)
	remote.Origin = "instance-b"

	for _, tc := range []struct {
		name string
		ev   Event
		want bool
	}{
		{"own", own, false},
		{"remote", remote, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := json.Marshal(tc.ev)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := p.decode(string(payload))
			if ok != tc.want {
				t.Fatalf("expected forward=%v, got %v", tc.want, ok)
			}
			if ok && got.ID != tc.ev.ID {
				t.Errorf("expected event %s, got %s", tc.ev.ID, got.ID)
			}
		})
	}

	if _, ok := p.decode("{not json"); ok {
		t.Error("expected malformed payload to be dropped")
	}
}
