// Package unlock decides which audio drops a user can currently play.
//
// A drop is unlocked when its time-lock has passed and the user stands
// within the drop's range. Every function here is pure: the user position
// and the reference time are always passed in, never read from the
// environment, so repeated calls with the same inputs agree.
package unlock

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/geo"
	"github.com/kass/echo-trails/pkg/models"
)

var (
	// ErrIncompleteData means a drop lacks a location, a positive range or
	// a time-lock, so it can be neither locked nor unlocked.
	ErrIncompleteData = errors.New("incomplete drop data")

	// ErrMalformedLocation means a raw record's coordinates are missing,
	// not a pair, or not numeric.
	ErrMalformedLocation = errors.New("malformed drop location")
)

// Evaluator applies the unlock rule. The zero value follows the permissive
// behaviour of the web client and does not range-check coordinates.
type Evaluator struct {
	// StrictCoordinates rejects latitudes outside [-90, 90] and longitudes
	// outside [-180, 180] with geo.ErrOutOfRangeCoordinate.
	StrictCoordinates bool
}

var defaultEvaluator Evaluator

// Evaluate reports whether drop is unlocked for a user at user at time now.
// It returns ErrIncompleteData rather than a result when the drop cannot
// be evaluated.
func Evaluate(user models.GeoPoint, drop models.AudioDrop, now time.Time) (models.UnlockResult, error) {
	return defaultEvaluator.Evaluate(user, drop, now)
}

// Surpassed is the single-drop notification signal: true when the drop's
// time-lock has passed and the user is within range.
func Surpassed(user models.GeoPoint, drop models.AudioDrop, now time.Time) (bool, error) {
	res, err := Evaluate(user, drop, now)
	if err != nil {
		return false, err
	}
	return res.Unlocked, nil
}

// Evaluate reports whether drop is unlocked for a user at user at time now.
func (e Evaluator) Evaluate(user models.GeoPoint, drop models.AudioDrop, now time.Time) (models.UnlockResult, error) {
	if err := checkComplete(drop); err != nil {
		return models.UnlockResult{}, err
	}

	if e.StrictCoordinates {
		if err := geo.Validate(user); err != nil {
			return models.UnlockResult{}, errors.Wrap(err, "user location")
		}
		if err := geo.Validate(*drop.Location); err != nil {
			return models.UnlockResult{}, errors.Wrapf(err, "drop %s", drop.ID)
		}
	}

	dist := geo.Distance(user, *drop.Location)
	res := models.UnlockResult{
		Distance:   dist,
		TimeLocked: !now.After(drop.HiddenUntil),
		OutOfRange: dist > drop.Range,
	}
	res.Unlocked = !res.TimeLocked && !res.OutOfRange
	return res, nil
}

func checkComplete(drop models.AudioDrop) error {
	switch {
	case drop.Location == nil:
		return errors.Wrapf(ErrIncompleteData, "drop %s: missing location", drop.ID)
	case !(drop.Range > 0):
		return errors.Wrapf(ErrIncompleteData, "drop %s: missing range", drop.ID)
	case drop.HiddenUntil.IsZero():
		return errors.Wrapf(ErrIncompleteData, "drop %s: missing hidden_until", drop.ID)
	}
	return nil
}
