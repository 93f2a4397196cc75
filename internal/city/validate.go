package city

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants of every train: calls follow the
// direction order (wrapping at most once on loops) and absolute times strictly
// increase.
func (c *City) Validate() error {
	var errs []error
	for _, name := range c.LineOrder {
		l := c.Lines[name]
		if len(l.Directions) == 0 {
			errs = append(errs, fmt.Errorf("%w: line %s has no directions", ErrInvalid, l.Name))
		}
		for dir, byGroup := range l.Trains {
			d := l.Directions[dir]
			for _, trains := range byGroup {
				for _, t := range trains {
					if err := validateTrain(l, d, t); err != nil {
						errs = append(errs, err)
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

func validateTrain(l *Line, d *Direction, t *Train) error {
	n := len(d.Stations)
	travelled := 0
	for i, stop := range t.Stops {
		idx := d.Index(stop.Station)
		if idx < 0 {
			return fmt.Errorf("%w: train %s calls at %s, not on %s %s", ErrInvalid, t.Code, stop.Station, l.Name, d.Name)
		}
		if i == 0 {
			continue
		}
		prev := t.Stops[i-1]
		if stop.Time.Absolute() <= prev.Time.Absolute() {
			return fmt.Errorf("%w: train %s times not increasing at %s (%s after %s)",
				ErrInvalid, t.Code, stop.Station, stop.Time.ScheduleString(), prev.Time.ScheduleString())
		}
		step := idx - d.Index(prev.Station)
		if l.Loop {
			step = (step + n) % n
			travelled += step
			if step == 0 || travelled > n {
				return fmt.Errorf("%w: train %s loops past its origin at %s", ErrInvalid, t.Code, stop.Station)
			}
		} else if step <= 0 {
			return fmt.Errorf("%w: train %s calls at %s out of %s order", ErrInvalid, t.Code, stop.Station, d.Name)
		}
	}
	return nil
}
