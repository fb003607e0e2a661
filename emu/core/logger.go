// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("core")

const logFormat = `%{color}%{time:15:04:05.000000} %{module} %{shortfunc} %{level:s} %{id:03x}%{color:reset} ▶ %{message}`

// ConfigureLogger set one backend for all the emu modules, DEBUG in verbose mode WARNING otherwise
func ConfigureLogger(verbose bool) {
	format := logging.MustStringFormatter(logFormat)

	backend := logging.NewLogBackend(os.Stderr, "[EMU] ", 0)
	backendformatter := logging.NewBackendFormatter(backend, format)
	backendLeveled := logging.AddModuleLevel(backendformatter)

	if verbose {
		backendLeveled.SetLevel(logging.DEBUG, "")
	} else {
		backendLeveled.SetLevel(logging.WARNING, "")
	}

	logging.SetBackend(backendLeveled)
}

// GetLogger return the logger of a module
func GetLogger(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}
