// Package med is a thin layer over medfile for writing entities to MED
// files and validating files before reading them.
//
// Entities implement ContentWriter and embed Writable for their string and
// connectivity policies. StandAlone writes them to a path, to a legacy 3.3
// file or to an in-memory image; the handle opened for each call is always
// released before the call returns.
package med

import (
	"github.com/batchatco/go-native-med/med/util"
)

var (
	logger = util.NewLogger()
	log    = "don't use the log package" // prevents usage of standard log package
)

func SetLogLevel(level int) {
	logger.SetLogLevel(level)
}
