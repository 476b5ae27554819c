package frequencies

import "fmt"

// RowItem is one entry of a GetFrequentItems result: an item together with
// its point estimate and the lower/upper bounds the sketch can guarantee.
type RowItem[C comparable] struct {
	item C
	est  int64
	ub   int64
	lb   int64
}

func newRowItem[C comparable](item C, est, ub, lb int64) *RowItem[C] {
	return &RowItem[C]{item: item, est: est, ub: ub, lb: lb}
}

func (r *RowItem[C]) GetItem() C      { return r.item }
func (r *RowItem[C]) GetEstimate() int64 { return r.est }
func (r *RowItem[C]) GetUpperBound() int64 { return r.ub }
func (r *RowItem[C]) GetLowerBound() int64 { return r.lb }

func (r *RowItem[C]) String() string {
	return fmt.Sprintf("%v: est=%d, lb=%d, ub=%d", r.item, r.est, r.lb, r.ub)
}
