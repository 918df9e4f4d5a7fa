package godb

import (
	"fmt"
	"log"
	"math"
)

// Stats is the interface a query planner consults to estimate scan cost and
// predicate selectivity without actually running the query.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

// TableStats holds a per-column histogram for one base table, built by two
// full scans (see ComputeTableStats).
type TableStats struct {
	basePages  int
	baseTups   int
	histograms map[string]any
	tupleDesc  *TupleDesc
}

// CostPerPage is the assumed cost, in arbitrary units, of reading one page
// from disk with no buffer pool help. Exposed as a constant so a future cost
// model can recalibrate it for a specific storage device.
const CostPerPage = 1000

// NumHistBins is the number of buckets an IntHistogram is built with.
const NumHistBins = 100

func tableMinMax(tid TransactionID, dbFile DBFile) ([]int64, []int64, error) {
	td := dbFile.Descriptor()
	mins := make([]int64, len(td.Fields))
	maxs := make([]int64, len(td.Fields))
	for i := range mins {
		mins[i] = math.MaxInt64
		maxs[i] = math.MinInt64
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, nil, err
	}
	for tup, err := iter(); tup != nil; tup, err = iter() {
		if err != nil {
			return nil, nil, err
		}
		for i, f := range td.Fields {
			if f.Ftype != IntType {
				continue
			}
			v := tup.Fields[i].(IntField).Value
			if v < mins[i] {
				mins[i] = v
			}
			if v > maxs[i] {
				maxs[i] = v
			}
		}
	}
	for i := range mins {
		if mins[i] > maxs[i] {
			mins[i] = 0
			maxs[i] = 0
		}
	}
	return mins, maxs, nil
}

// ComputeTableStats builds a TableStats for dbFile with a dedicated
// transaction that scans the table twice: once to find each int field's
// min/max (needed to size its histogram's buckets), once to populate the
// histograms.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return nil, err
	}
	defer bp.CommitTransaction(tid)

	td := dbFile.Descriptor()

	mins, maxs, err := tableMinMax(tid, dbFile)
	if err != nil {
		return nil, err
	}

	hists := make(map[string]any, len(td.Fields))
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			h, err := NewIntHistogram(NumHistBins, mins[i], maxs[i])
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		case StringType:
			h, err := NewStringHistogram()
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		case UnknownType:
			return nil, fmt.Errorf("unexpected unknown type for field %s", f.Fname)
		}
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}

	baseTups := 0
	for tup, err := iter(); tup != nil; tup, err = iter() {
		if err != nil {
			return nil, err
		}
		for i, f := range td.Fields {
			switch f.Ftype {
			case IntType:
				if err := hists[f.Fname].(*IntHistogram).AddValue(tup.Fields[i].(IntField).Value); err != nil {
					return nil, err
				}
			case StringType:
				hists[f.Fname].(*StringHistogram).AddValue(tup.Fields[i].(StringField).Value)
			case UnknownType:
				return nil, fmt.Errorf("unexpected unknown type for field %s", f.Fname)
			}
		}
		baseTups++
	}

	return &TableStats{dbFile.NumPages(), baseTups, hists, td}, nil
}

// EstimateScanCost estimates the cost of a full sequential scan, assuming no
// pages are cached and every page, however sparsely filled, costs the same
// to read.
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.basePages * CostPerPage)
}

// EstimateCardinality estimates the number of tuples a predicate with the
// given selectivity would pass.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(t.baseTups) * selectivity)
}

// EstimateSelectivity looks up field's histogram and estimates the
// selectivity of "field op value". Returns 1.0 (no filtering assumed) with a
// warning if no histogram was built for field.
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	hist, ok := t.histograms[field]
	if !ok {
		log.Printf("WARNING: no histogram found for field %s", field)
		return 1.0, nil
	}

	switch h := hist.(type) {
	case *IntHistogram:
		v, ok := value.(IntField)
		if !ok {
			return 1.0, fmt.Errorf("field %q is int, but value %v is not an IntField", field, value)
		}
		return h.EstimateSelectivity(op, v.Value), nil
	case *StringHistogram:
		v, ok := value.(StringField)
		if !ok {
			return 1.0, fmt.Errorf("field %q is string, but value %v is not a StringField", field, value)
		}
		return h.EstimateSelectivity(op, v.Value), nil
	}
	return 1.0, fmt.Errorf("unexpected histogram type for field %q", field)
}
