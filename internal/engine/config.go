package engine

import "time"

type EngineConfig struct {
	valueAtCostWhenUnquoted bool
	clock                   func() time.Time
}

// NewEngineConfig returns the engine settings. A nil clock uses time.Now.
func NewEngineConfig(valueAtCostWhenUnquoted bool, clock func() time.Time) *EngineConfig {
	if clock == nil {
		clock = time.Now
	}
	return &EngineConfig{
		valueAtCostWhenUnquoted: valueAtCostWhenUnquoted,
		clock:                   clock,
	}
}

type ReportingConfig struct {
	reportName string
	filePath   string
}

// NewReportingConfig names the CSV export written by WriteTransactionsCSVFile.
func NewReportingConfig(reportName string, filePath string) *ReportingConfig {
	return &ReportingConfig{
		reportName: reportName,
		filePath:   filePath,
	}
}
