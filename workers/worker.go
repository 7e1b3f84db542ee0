package workers

import (
	"fmt"

	"github.com/incognitochain/etn-bridge/utils"
	"github.com/sirupsen/logrus"
)

type WorkerAbs struct {
	ID        int
	Name      string
	Frequency int // in sec
	Quit      chan bool
	Logger    *logrus.Entry
}

type Worker interface {
	Execute()
	GetName() string
	GetFrequency() int
	GetQuitChan() chan bool
}

func (a *WorkerAbs) Init(id int, name string, freq int) error {
	if freq <= 0 {
		return fmt.Errorf("Invalid frequency %v for worker %v", freq, name)
	}
	a.ID = id
	a.Name = name
	a.Frequency = freq
	a.Quit = make(chan bool)
	a.Logger = logrus.WithFields(logrus.Fields{
		"worker": name,
		"id":     id,
	})
	return nil
}

func (a *WorkerAbs) Execute() {
	a.Logger.Info("Abstract worker is executing...")
}

func (a *WorkerAbs) GetName() string {
	return a.Name
}

func (a *WorkerAbs) GetFrequency() int {
	return a.Frequency
}

func (a *WorkerAbs) GetQuitChan() chan bool {
	return a.Quit
}

// ExportErrorLog logs msg and posts it to the alert webhook
func (a *WorkerAbs) ExportErrorLog(msg string) {
	a.Logger.Error(msg)
	if err := utils.SendSlackNotification(fmt.Sprintf("[%v] %v", a.Name, msg), utils.AlertNotification); err != nil {
		a.Logger.Warnf("Could not send alert - with err: %v", err)
	}
}

// ExportInfoLog logs msg and posts it to the info webhook
func (a *WorkerAbs) ExportInfoLog(msg string) {
	a.Logger.Info(msg)
	if err := utils.SendSlackNotification(fmt.Sprintf("[%v] %v", a.Name, msg), utils.InfoNotification); err != nil {
		a.Logger.Warnf("Could not send info - with err: %v", err)
	}
}
