package unlock

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/geo"
	"github.com/kass/echo-trails/pkg/models"
)

// Skip reasons recorded in a Report
const (
	ReasonMalformed  = "malformed"
	ReasonIncomplete = "incomplete"
)

// Evaluation is one well-formed drop together with its unlock result
type Evaluation struct {
	Drop   models.AudioDrop
	Result models.UnlockResult
}

// Skipped identifies a record excluded before evaluation
type Skipped struct {
	ID     string
	Reason string
	Err    error
}

// Report summarises one evaluation pass
type Report struct {
	Total      int
	Unlocked   int
	TimeLocked int
	OutOfRange int
	Malformed  int
	Incomplete int
	Skipped    []Skipped
}

// Evaluated returns the number of records that reached the predicate
func (r Report) Evaluated() int {
	return r.Total - r.Malformed - r.Incomplete
}

// Filter returns, in input order, the drops unlocked for a user at user at
// time now. Records that cannot be evaluated are left out and counted in
// the report.
func Filter(user models.GeoPoint, now time.Time, raws []models.RawDrop) ([]models.AudioDrop, Report) {
	drops, report, _ := defaultEvaluator.Filter(user, now, raws)
	return drops, report
}

// Annotate evaluates every well-formed record, keeping input order
func Annotate(user models.GeoPoint, now time.Time, raws []models.RawDrop) ([]Evaluation, Report) {
	evals, report, _ := defaultEvaluator.Annotate(user, now, raws)
	return evals, report
}

// Filter is Filter with the evaluator's options. In strict mode an
// out-of-range user location is returned as an error.
func (e Evaluator) Filter(user models.GeoPoint, now time.Time, raws []models.RawDrop) ([]models.AudioDrop, Report, error) {
	evals, report, err := e.Annotate(user, now, raws)
	if err != nil {
		return nil, report, err
	}

	drops := make([]models.AudioDrop, 0, report.Unlocked)
	for _, ev := range evals {
		if ev.Result.Unlocked {
			drops = append(drops, ev.Drop)
		}
	}
	return drops, report, nil
}

// Annotate is Annotate with the evaluator's options
func (e Evaluator) Annotate(user models.GeoPoint, now time.Time, raws []models.RawDrop) ([]Evaluation, Report, error) {
	report := Report{Total: len(raws)}

	if e.StrictCoordinates {
		if err := geo.Validate(user); err != nil {
			return nil, report, errors.Wrap(err, "user location")
		}
	}

	evals := make([]Evaluation, 0, len(raws))
	for _, raw := range raws {
		drop, err := Decode(raw)
		if err == nil {
			var res models.UnlockResult
			if res, err = e.Evaluate(user, drop, now); err == nil {
				evals = append(evals, Evaluation{Drop: drop, Result: res})
				report.count(res)
				continue
			}
		}
		report.skip(raw.ID, err)
	}

	return evals, report, nil
}

func (r *Report) count(res models.UnlockResult) {
	switch {
	case res.Unlocked:
		r.Unlocked++
	case res.TimeLocked:
		r.TimeLocked++
	default:
		r.OutOfRange++
	}
}

func (r *Report) skip(id string, err error) {
	reason := ReasonMalformed
	if errors.Is(err, ErrIncompleteData) {
		reason = ReasonIncomplete
		r.Incomplete++
	} else {
		r.Malformed++
	}
	r.Skipped = append(r.Skipped, Skipped{ID: id, Reason: reason, Err: err})
}
