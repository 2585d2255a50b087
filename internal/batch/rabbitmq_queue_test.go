package batch

import (
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ackRecorder struct {
	acks     int
	nacks    int
	requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acks++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestSettleRequeuesOnlyFirstDelivery(t *testing.T) {
	failure := errors.New("store unavailable")
	cases := []struct {
		name        string
		redelivered bool
		err         error
		acks, nacks int
	}{
		{"success", false, nil, 1, 0},
		{"first failure requeues", false, failure, 0, 1},
		{"redelivered failure is acked", true, failure, 1, 0},
		{"redelivered success", true, nil, 1, 0},
	}
	for _, tc := range cases {
		rec := &ackRecorder{}
		settle(amqp.Delivery{Acknowledger: rec, Redelivered: tc.redelivered, Body: []byte("job-1")}, tc.err)
		if rec.acks != tc.acks || rec.nacks != tc.nacks {
			t.Fatalf("%s: acks=%d nacks=%d, want %d/%d", tc.name, rec.acks, rec.nacks, tc.acks, tc.nacks)
		}
		if rec.nacks > 0 && !rec.requeued {
			t.Fatalf("%s: nack should requeue", tc.name)
		}
	}
}
