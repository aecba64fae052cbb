package domain

import (
	"errors"
	"time"
)

// Change is the normalized outcome of an upsert
type Change string

const (
	ChangeCreated   Change = "created"
	ChangeUpdated   Change = "updated"
	ChangeUnchanged Change = "unchanged"
)

// Tally accumulates per-row changes of a multi-row or multi-feed write
type Tally struct {
	Created   int
	Updated   int
	Unchanged int
}

// Add records one row change
func (t *Tally) Add(c Change) {
	switch c {
	case ChangeCreated:
		t.Created++
	case ChangeUpdated:
		t.Updated++
	default:
		t.Unchanged++
	}
}

// Merge folds another tally into t
func (t *Tally) Merge(o Tally) {
	t.Created += o.Created
	t.Updated += o.Updated
	t.Unchanged += o.Unchanged
}

// Affected is the number of rows created or updated
func (t Tally) Affected() int { return t.Created + t.Updated }

// Change collapses the tally: any creation wins, then any update
func (t Tally) Change() Change {
	switch {
	case t.Created > 0:
		return ChangeCreated
	case t.Updated > 0:
		return ChangeUpdated
	default:
		return ChangeUnchanged
	}
}

// Condition classifies a result beyond plain success
type Condition string

const (
	ConditionOK              Condition = "ok"
	ConditionNoSourceData    Condition = "no_source_data"
	ConditionInvalidDate     Condition = "invalid_date_input"
	ConditionStoreConnection Condition = "store_connection_failure"
	ConditionStoreQuery      Condition = "store_query_failure"
	ConditionNotImplemented  Condition = "not_implemented"
	ConditionInternal        Condition = "internal_failure"
)

// ClassifyError maps an error to the condition reported to callers
func ClassifyError(err error) Condition {
	switch {
	case err == nil:
		return ConditionOK
	case errors.Is(err, ErrInvalidDateInput):
		return ConditionInvalidDate
	case errors.Is(err, ErrNotImplemented):
		return ConditionNotImplemented
	case errors.Is(err, ErrStoreConnection):
		return ConditionStoreConnection
	case errors.Is(err, ErrStoreQuery):
		return ConditionStoreQuery
	default:
		return ConditionInternal
	}
}

// Result is the uniform record returned for every rule invocation
type Result struct {
	Success      bool      `json:"success"`
	Change       Change    `json:"change"`
	AffectedRows int       `json:"affected_rows"`
	Condition    Condition `json:"condition"`
	TargetDate   string    `json:"target_date"`
	Message      string    `json:"message"`
	SourceCount  *int      `json:"source_count,omitempty"`
}

// NoSourceData reports whether the run succeeded without any matching source rows
func (r Result) NoSourceData() bool {
	return r.Success && r.Condition == ConditionNoSourceData
}

// BatchResult maps rule name to its own record
type BatchResult map[string]Result

// Failed counts records that did not succeed
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b {
		if !r.Success {
			n++
		}
	}
	return n
}

// TimeLayout is the fixed format used for time columns in read-back records
const TimeLayout = "2006-01-02 15:04:05"

// Record is one read-back row with transport-safe values
type Record map[string]any

// RecordSet is an ordered read-back result
type RecordSet struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// Len returns the number of rows
func (rs RecordSet) Len() int { return len(rs.Rows) }

// FormatValue converts store-native values into transport-safe ones
func FormatValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(TimeLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(TimeLayout)
	case []byte:
		return string(val)
	default:
		return v
	}
}
