// Package logging provides structured JSON logging for smre.
//
// Records go to a size-rotated file under ~/.smre/logs/ so that search and
// index commands keep stdout for results. With --debug the same records are
// mirrored to stderr at debug level.
package logging
