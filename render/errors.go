package render

import (
	"errors"
	"fmt"
)

var (
	// ErrInit is returned when the engine cannot be created, configured or
	// initialized.
	ErrInit = errors.New("engine initialization failed")

	// ErrBind is returned when the engine's renderer cannot be bound to the
	// host graphics context.
	ErrBind = errors.New("graphics binding failed")

	// ErrMissingMedia is returned when no media target was given.
	ErrMissingMedia = errors.New("expected a media target")

	// ErrRefreshStopped is returned when starting a refresh driver that
	// has already been stopped.
	ErrRefreshStopped = errors.New("refresh driver stopped")
)

// Stage names the bring-up step a fatal error came from.
type Stage string

const (
	StageMedia      Stage = "media"
	StageCreate     Stage = "create"
	StageOption     Stage = "option"
	StageInitialize Stage = "initialize"
	StageSubAPI     Stage = "sub-api"
	StageBind       Stage = "bind"
	StageContext    Stage = "context"
)

// FatalError is an unrecoverable bring-up failure. The core never exits the
// process itself: whoever embeds it decides whether a FatalError ends the
// program or triggers a supervised restart.
type FatalError struct {
	Stage Stage
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(stage Stage, err error) *FatalError {
	return &FatalError{Stage: stage, Err: err}
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
