package ledger

import (
	"github.com/incognitochain/etn-bridge/database"
	"github.com/incognitochain/etn-bridge/entities"
)

// EventSink receives events after the mutation that produced them has been
// committed. Publish is called with the ledger locks held, so it must not
// block or call back into the ledger.
type EventSink interface {
	Publish(env *entities.EventEnvelope)
}

type nopSink struct{}

func (nopSink) Publish(*entities.EventEnvelope) {}

// journal numbers events globally. It is guarded by Vault.mu since both entry
// points that emit events hold it.
type journal struct {
	lastSeq uint64
}

func (j *journal) stage(batch *database.Batch, evt entities.Event) *entities.EventEnvelope {
	seq := j.lastSeq + 1
	batch.PutJSON(eventKey(seq), newEventObject(seq, evt))
	return &entities.EventEnvelope{Seq: seq, Name: evt.EventName(), Event: evt}
}

func (j *journal) commit(env *entities.EventEnvelope) {
	j.lastSeq = env.Seq
}
