package emu

import "errors"

// ErrSavePersistFailed wraps an underlying I/O error from writing a .sav or
// .rtc file during SavePersistence.
var ErrSavePersistFailed = errors.New("save persist failed")
