package eventbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

const (
	// StreamLedgerEvents is the JetStream stream every ledger append is
	// optionally published to.
	StreamLedgerEvents = "LEDGER_EVENTS"

	// SubjectLedgerPrefix is the subject prefix for ledger events; the
	// full subject is SubjectLedgerPrefix + event kind.
	SubjectLedgerPrefix = "ledger."
)

// SubjectForKind returns the NATS subject a ledger event of the given
// kind publishes to.
func SubjectForKind(kind string) string {
	return SubjectLedgerPrefix + kind
}

// EnsureStream creates the LEDGER_EVENTS stream if it doesn't already
// exist. Called during server startup when NATS is enabled.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamLedgerEvents); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     StreamLedgerEvents,
			Subjects: []string{SubjectLedgerPrefix + ">"},
			Storage:  nats.FileStorage,
			MaxMsgs:  100_000,
			MaxBytes: 500 << 20,
		})
		if err != nil {
			return fmt.Errorf("create %s stream: %w", StreamLedgerEvents, err)
		}
	}
	return nil
}
