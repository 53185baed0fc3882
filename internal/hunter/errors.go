package hunter

import "errors"

// Domain errors for the hunter package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, hunter.ErrTemplateUnbound) {
//	    // tell the operator which template files are missing
//	}
var (
	// ErrTemplateUnbound is returned by Start when a required label has no template.
	ErrTemplateUnbound = errors.New("hunter: template not bound")

	// ErrInvalidThreshold is returned for a confidence threshold outside [0.5, 0.95].
	ErrInvalidThreshold = errors.New("hunter: invalid threshold")

	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("hunter: run already active")

	// ErrSceneFailure records a required control missing on a scene the
	// automaton was confident about. It ends the run.
	ErrSceneFailure = errors.New("hunter: required control missing")

	// ErrMissingDependency is returned by NewController for a nil collaborator.
	ErrMissingDependency = errors.New("hunter: missing dependency")

	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("hunter: run not found")
)
