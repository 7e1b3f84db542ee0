package workers

const (
	ReportRelayerID = 1
	VaultMonitorID  = 2

	DefaultRelayerFrequency = 10  // sec
	DefaultMonitorFrequency = 300 // sec

	ReportFileExt      = ".json"
	ReasonFileExt      = ".reason"
	ProcessedReportDir = "processed"
	RejectedReportDir  = "rejected"

	VaultMonitorDBObjectName = "vaultmonitor/last-audit"
)
