package notifier

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/incognitochain/etn-bridge/entities"
	"github.com/incognitochain/etn-bridge/utils"
	"github.com/sirupsen/logrus"
)

const DefaultBufferSize = 1024

// SendFunc delivers a formatted message, e.g. utils.SendSlackNotification
type SendFunc func(msg string, notiType int) error

// Notifier forwards ledger events to the log and to the info webhook. Publish
// never blocks: when the buffer is full the event is dropped and counted, it
// can still be read back from the ledger's event journal.
type Notifier struct {
	events  chan *entities.EventEnvelope
	quit    chan struct{}
	wg      sync.WaitGroup
	send    SendFunc
	logger  *logrus.Entry
	dropped uint64
}

func New(bufferSize int, send SendFunc, logger *logrus.Entry) *Notifier {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if send == nil {
		send = utils.SendSlackNotification
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Notifier{
		events: make(chan *entities.EventEnvelope, bufferSize),
		quit:   make(chan struct{}),
		send:   send,
		logger: logger.WithField("component", "notifier"),
	}
}

func (n *Notifier) Publish(env *entities.EventEnvelope) {
	select {
	case n.events <- env:
	default:
		atomic.AddUint64(&n.dropped, 1)
		n.logger.Warnf("Notification buffer is full, dropping event #%v %v", env.Seq, env.Name)
	}
}

func (n *Notifier) Dropped() uint64 {
	return atomic.LoadUint64(&n.dropped)
}

func (n *Notifier) Start() {
	n.wg.Add(1)
	go n.run()
}

// Stop delivers the events already buffered and waits for the loop to exit
func (n *Notifier) Stop() {
	close(n.quit)
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for {
		select {
		case env := <-n.events:
			n.deliver(env)
		case <-n.quit:
			for {
				select {
				case env := <-n.events:
					n.deliver(env)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(env *entities.EventEnvelope) {
	msg := FormatEvent(env)
	n.logger.WithField("seq", env.Seq).Info(msg)
	if err := n.send(msg, utils.InfoNotification); err != nil {
		n.logger.Errorf("Could not send notification for event #%v - with err: %v", env.Seq, err)
	}
}

// FormatEvent renders env as a one line human readable message
func FormatEvent(env *entities.EventEnvelope) string {
	switch e := env.Event.(type) {
	case *entities.DepositReceived:
		return fmt.Sprintf("[#%d] Deposit of %v ETN received from %v",
			env.Seq, utils.ConvertWeiToETN(e.Amount), e.From.Hex())
	case *entities.CrossChainTransfer:
		msg := fmt.Sprintf("[#%d] Cross chain transfer of %v ETN from %v to %v (legacy tx %v)",
			env.Seq, utils.ConvertWeiToETN(e.Amount), e.LegacyAddress, e.Destination.Hex(), e.TxID)
		if e.FeeWaived {
			msg += ", fee waived"
		}
		return msg
	default:
		return fmt.Sprintf("[#%d] %v", env.Seq, env.Name)
	}
}
