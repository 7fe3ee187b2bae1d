package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrRateLimited        = fmt.Errorf("rate limited")

	// Sync run errors
	ErrRemoteUnavailable = fmt.Errorf("remote listing unavailable")
	ErrUnresolvable      = fmt.Errorf("no acceptable candidate")
	ErrFetchFailed       = fmt.Errorf("fetch failed")
	ErrCorruptManifest   = fmt.Errorf("corrupt manifest")
	ErrConflict          = fmt.Errorf("manifest changed on disk")
	ErrSyncIncomplete    = fmt.Errorf("sync incomplete")
	ErrLocked            = fmt.Errorf("playlist folder is locked by another run")
	ErrCancelled         = fmt.Errorf("sync run cancelled")
	ErrRunNotFound       = fmt.Errorf("sync run not found")
	ErrUnsupportedOrigin = fmt.Errorf("unsupported playlist origin")

	// Manifest mutation errors
	ErrManualTrack     = fmt.Errorf("manually added tracks cannot be removed by sync")
	ErrStillListed     = fmt.Errorf("track is still present in the remote listing")
	ErrDuplicateTrack  = fmt.Errorf("duplicate track")
	ErrInvalidMutation = fmt.Errorf("invalid mutation")

	// Fetch failure classes
	ErrTransient = fmt.Errorf("transient failure")
	ErrPermanent = fmt.Errorf("permanent failure")
	ErrIntegrity = fmt.Errorf("integrity check failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
