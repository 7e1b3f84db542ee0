package workers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/entities"
	"github.com/incognitochain/etn-bridge/ledger"
	"github.com/incognitochain/etn-bridge/utils"
)

// MalformedReport is the kind written for reports that could not be decoded
const MalformedReport = "MalformedReport"

// ReportRelayer picks up transfer reports dropped into an inbox directory and
// records them on the ledger, oldest file name first. Accepted reports move to
// processed/, rejected ones to rejected/ next to a .reason file. A report that
// fails for any other reason stays in the inbox and is retried on the next run.
// A retried report whose transfer is already on the ledger with the same
// fields counts as accepted.
type ReportRelayer struct {
	WorkerAbs
	ledger   *ledger.Ledger
	inboxDir string
}

type RejectedReportObject struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (b *ReportRelayer) Init(id int, name string, freq int, l *ledger.Ledger, inboxDir string) error {
	if err := b.WorkerAbs.Init(id, name, freq); err != nil {
		return err
	}
	b.ledger = l
	b.inboxDir = inboxDir
	for _, dir := range []string{inboxDir, b.processedDir(), b.rejectedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.ExportErrorLog(fmt.Sprintf("Could not create report directory %v - with err: %v", dir, err))
			return err
		}
	}
	return nil
}

func (b *ReportRelayer) processedDir() string {
	return filepath.Join(b.inboxDir, ProcessedReportDir)
}

func (b *ReportRelayer) rejectedDir() string {
	return filepath.Join(b.inboxDir, RejectedReportDir)
}

func (b *ReportRelayer) Execute() {
	b.Logger.Info("ReportRelayer worker is executing...")

	files, err := b.pendingReports()
	if err != nil {
		b.ExportErrorLog(fmt.Sprintf("Could not list report inbox %v - with err: %v", b.inboxDir, err))
		return
	}

	accepted, rejected := 0, 0
	for _, fileName := range files {
		ok, err := b.relayReport(fileName)
		if err != nil {
			// keep the order of reports, try again next run
			b.ExportErrorLog(fmt.Sprintf("Could not relay report %v - with err: %v", fileName, err))
			break
		}
		if ok {
			accepted++
		} else {
			rejected++
		}
	}
	if accepted+rejected > 0 {
		b.Logger.Infof("Relayed reports: %v accepted, %v rejected", accepted, rejected)
	}
}

func (b *ReportRelayer) pendingReports() ([]string, error) {
	entries, err := os.ReadDir(b.inboxDir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ReportFileExt) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// relayReport returns false when the report was rejected
func (b *ReportRelayer) relayReport(fileName string) (bool, error) {
	path := filepath.Join(b.inboxDir, fileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	var report entities.TransferReport
	if err := json.Unmarshal(content, &report); err != nil {
		return false, b.reject(fileName, &RejectedReportObject{
			Kind:   MalformedReport,
			Reason: fmt.Sprintf("Could not decode report: %v", err),
		})
	}
	amount, err := utils.ParseWei(report.Amount)
	if err != nil {
		return false, b.reject(fileName, &RejectedReportObject{Kind: MalformedReport, Reason: err.Error()})
	}

	// a malformed destination is the zero address, which the ledger rejects in order
	var destination common.Address
	if common.IsHexAddress(report.Destination) {
		destination = common.HexToAddress(report.Destination)
	}

	receipt, err := b.ledger.RecordTransfer(
		destination,
		entities.LegacyAddress(report.LegacyAddress),
		amount,
		entities.TxID(report.TxHash),
		report.FeeWaived,
	)
	if err != nil {
		kind, isRejection := ledger.KindOf(err)
		if !isRejection {
			return false, err
		}
		if kind == ledger.DuplicateTransaction && b.alreadyRecorded(&report, destination, amount) {
			// recorded on an earlier run that could not move the file
			b.Logger.Infof("Report %v was already recorded, moving it to processed", fileName)
			return true, os.Rename(path, filepath.Join(b.processedDir(), fileName))
		}
		b.Logger.Warnf("Report %v rejected: %v", fileName, err)
		return false, b.reject(fileName, &RejectedReportObject{Kind: kind.String(), Reason: rejectionReason(err)})
	}

	b.Logger.Infof("Report %v recorded as transfer #%v", fileName, receipt.Seq)
	return true, os.Rename(path, filepath.Join(b.processedDir(), fileName))
}

// alreadyRecorded reports whether the ledger holds a transfer identical to report
func (b *ReportRelayer) alreadyRecorded(report *entities.TransferReport, destination common.Address, amount *uint256.Int) bool {
	rec, ok := b.ledger.TxRecord(entities.TxID(report.TxHash))
	if !ok {
		return false
	}
	return rec.Destination == destination &&
		rec.LegacyAddress == entities.LegacyAddress(report.LegacyAddress) &&
		rec.Amount.Eq(amount) &&
		rec.FeeWaived == report.FeeWaived
}

func (b *ReportRelayer) reject(fileName string, obj *RejectedReportObject) error {
	content, _ := json.Marshal(obj)
	reasonFile := filepath.Join(b.rejectedDir(), strings.TrimSuffix(fileName, ReportFileExt)+ReasonFileExt)
	if err := os.WriteFile(reasonFile, content, 0o644); err != nil {
		return err
	}
	return os.Rename(filepath.Join(b.inboxDir, fileName), filepath.Join(b.rejectedDir(), fileName))
}

func rejectionReason(err error) string {
	var rejection *ledger.RejectionError
	if errors.As(err, &rejection) {
		return rejection.Reason
	}
	return err.Error()
}
