package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// fxLogger routes fx container events through the pipeline logger, so
// dependency wiring shows up at DEBUG and wiring failures at ERROR.
type fxLogger struct{}

// NewFxLogger returns an fxevent.Logger backed by the pipeline logger.
func NewFxLogger() fxevent.Logger {
	return &fxLogger{}
}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("OnStart hook executing: %s", hookName(e.FunctionName))
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("OnStart hook failed: %s: %v", hookName(e.FunctionName), e.Err)
		} else {
			Debugf("OnStart hook executed: %s", hookName(e.FunctionName))
		}
	case *fxevent.OnStopExecuting:
		Debugf("OnStop hook executing: %s", hookName(e.FunctionName))
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("OnStop hook failed: %s: %v", hookName(e.FunctionName), e.Err)
		} else {
			Debugf("OnStop hook executed: %s", hookName(e.FunctionName))
		}
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supply failed: %v", e.Err)
		} else {
			Debugf("Supplied: %s", e.TypeName)
		}
	case *fxevent.Provided:
		for _, rtype := range e.OutputTypeNames {
			Debugf("Provided: %s", rtype)
		}
		if e.Err != nil {
			Errorf("Provide failed: %v", e.Err)
		}
	case *fxevent.Invoking:
		Debugf("Invoking: %s", hookName(e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoke failed: %s: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		Debugf("Stopping on signal %s.", e.Signal)
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Start failed: %v", e.Err)
		} else {
			Infof("Application started.")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("Logger initialization failed: %v", e.Err)
		}
	}
}

// hookName strips fx's anonymous-function suffixes so hook log lines name the
// enclosing helper instead of a closure.
func hookName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
