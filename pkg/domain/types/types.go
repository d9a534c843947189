// Package types defines core domain identifiers for Vizier.
package types

import (
	"strconv"

	"github.com/google/uuid"
)

// ViztrailID is a unique identifier for a viztrail.
type ViztrailID string

// BranchID is a unique identifier for a branch within a viztrail.
type BranchID string

// DatasetID is an opaque identifier for an immutable dataset snapshot.
type DatasetID string

// FileID identifies an uploaded raw file.
type FileID string

// ModuleID is a viztrail-scoped module identifier issued by a sequence generator.
type ModuleID int64

// Version is a viztrail-scoped workflow version issued by a sequence generator.
type Version int64

// NoModule is the sentinel for "no module at or after the modified index".
const NoModule ModuleID = -1

// NewViztrailID generates a new unique viztrail ID.
func NewViztrailID() ViztrailID {
	return ViztrailID(uuid.NewString())
}

// NewBranchID generates a new unique branch ID.
func NewBranchID() BranchID {
	return BranchID(uuid.NewString())
}

// NewDatasetID generates a new unique dataset ID.
func NewDatasetID() DatasetID {
	return DatasetID(uuid.NewString())
}

// NewFileID generates a new unique file ID.
func NewFileID() FileID {
	return FileID(uuid.NewString())
}

// String returns the string representation of a ViztrailID.
func (id ViztrailID) String() string {
	return string(id)
}

// IsZero returns true if the ViztrailID is the zero value.
func (id ViztrailID) IsZero() bool {
	return id == ""
}

// String returns the string representation of a BranchID.
func (id BranchID) String() string {
	return string(id)
}

// IsZero returns true if the BranchID is the zero value.
func (id BranchID) IsZero() bool {
	return id == ""
}

// String returns the string representation of a DatasetID.
func (id DatasetID) String() string {
	return string(id)
}

// IsZero returns true if the DatasetID is the zero value.
func (id DatasetID) IsZero() bool {
	return id == ""
}

// String returns the string representation of a FileID.
func (id FileID) String() string {
	return string(id)
}

// String returns the decimal representation of a ModuleID.
func (id ModuleID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// String returns the decimal representation of a Version.
func (v Version) String() string {
	return strconv.FormatInt(int64(v), 10)
}
