// Package types defines data structures for vendor-qc configuration, delivery rows and
// validation results.
package types

import "time"

// DeliveryRow is one delivery record as supplied by the input collaborator.
type DeliveryRow struct {
	ToolNumber       string    `json:"Tool_Number" yaml:"Tool_Number"`
	ToolColumn       string    `json:"Tool Column" yaml:"Tool Column"`
	Vendor           string    `json:"Vendor,omitempty" yaml:"Vendor,omitempty"`
	ResponsibleUser  string    `json:"Responsible User" yaml:"Responsible User"`
	CustomerSchedule time.Time `json:"Customer schedule" yaml:"Customer schedule"`
	ProjectStartDate time.Time `json:"Project Start Date" yaml:"Project Start Date"`
	Technology       int       `json:"technology,omitempty" yaml:"technology,omitempty"`

	// HasTechnology distinguishes an explicit technology of 0 from a missing column.
	HasTechnology bool `json:"-" yaml:"-"`
}

// FailureRecord is a single reported failure for a delivery row.
type FailureRecord struct {
	ToolNumber      string `json:"Tool_Number"`
	Project         string `json:"Project"`
	Vendor          string `json:"Vendor,omitempty"`
	FailReason      string `json:"Fail Reason"`
	ResponsibleUser string `json:"Responsible User"`
	Checkpoint      string `json:"Checkpoint,omitempty"`
}

// NewFailureRecord builds a FailureRecord for row with the given reason.
func NewFailureRecord(row DeliveryRow, checkpoint, reason string) FailureRecord {
	return FailureRecord{
		ToolNumber:      row.ToolNumber,
		Project:         row.ToolColumn,
		Vendor:          row.Vendor,
		FailReason:      reason,
		ResponsibleUser: row.ResponsibleUser,
		Checkpoint:      checkpoint,
	}
}
