package refiner

import "errors"

// ErrUnparsed is returned when no sub-instruction produced a valid
// operation. Callers must surface it as "unparsed instruction", never treat
// the request as a no-op.
var ErrUnparsed = errors.New("unparsed instruction")

// ErrAllStrategiesFailed is returned when every rung of the edit strategy
// ladder failed, the plain-text last resort included.
var ErrAllStrategiesFailed = errors.New("all edit strategies failed")
