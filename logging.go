package tpx3

import (
	"log"
	"os"
)

// logger is the package-level logger, built on the standard log package
// rather than a structured-logging dependency. No code in this module
// writes to it: dropped pre-TDC hits are only counted (see
// PulseReader.DroppedPreTDCHits), and bucket-pool exhaustion and
// cancellation surface as returned errors or closed channels.
var logger = log.New(os.Stderr, "tpx3: ", log.LstdFlags)

// SetLogger lets an embedding application redirect diagnostic output.
func SetLogger(l *log.Logger) {
	if l != nil {
		logger = l
	}
}
