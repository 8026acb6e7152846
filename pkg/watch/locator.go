package watch

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/models"
)

// ErrLocationUnavailable is returned by a Locator that cannot produce a fix
var ErrLocationUnavailable = errors.New("location unavailable")

// Locator reports the user's current position
type Locator interface {
	Locate(ctx context.Context) (models.GeoPoint, error)
}

// LocatorFunc adapts a function to Locator
type LocatorFunc func(ctx context.Context) (models.GeoPoint, error)

// Locate calls f
func (f LocatorFunc) Locate(ctx context.Context) (models.GeoPoint, error) {
	return f(ctx)
}

// StaticLocator always reports the same position
type StaticLocator struct {
	Point models.GeoPoint
}

// Locate returns the fixed point
func (l StaticLocator) Locate(ctx context.Context) (models.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return models.GeoPoint{}, errors.Wrap(ErrLocationUnavailable, err.Error())
	}
	return l.Point, nil
}
