package types

import "time"

// Endpoint identifies which side of the migration a sample was taken from.
type Endpoint string

const (
	EndpointSource Endpoint = "source"
	EndpointTarget Endpoint = "target"
)

// Mode selects how row counts are obtained.
type Mode int

const (
	// ModeEstimate reads approximate cardinality from
	// information_schema.tables. Cheap, one query per schema.
	ModeEstimate Mode = iota
	// ModeExact issues SELECT COUNT(*) per table.
	ModeExact
)

func (m Mode) String() string {
	if m == ModeEstimate {
		return "estimate"
	}
	return "exact"
}

// RawSample is one measurement of one table on one endpoint. Samples are
// created fresh each poll cycle and never mutated afterwards.
type RawSample struct {
	Endpoint    Endpoint
	Schema      string
	RawName     string
	RowCount    int64
	IsEstimated bool
	SampledAt   time.Time
	Err         string
}

// Failed reports whether the sample carries a query or connection error.
func (s RawSample) Failed() bool {
	return s.Err != ""
}
