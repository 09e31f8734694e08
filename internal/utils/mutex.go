package utils

import "sync"

var gdalMu sync.Mutex

// ExecuteWithGDALLock serializes calls into GDAL dataset I/O, which is not
// safe to enter from multiple goroutines at once.
func ExecuteWithGDALLock(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}
