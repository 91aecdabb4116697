package archive

import "errors"

var (
	// ErrHashMismatch is returned when a DeviceFile's current content no
	// longer matches its committed signature hash (spec.md §4.5 step 1's
	// tamper guard, exercised by scenario S3).
	ErrHashMismatch = errors.New("archive: current file content does not match signed hash")
	// ErrVerifyFailed is returned when the freshly-written archive fails
	// its own decompress-and-rehash check.
	ErrVerifyFailed = errors.New("archive: verification of written archive failed")
)
