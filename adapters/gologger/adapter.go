package gologger

import (
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-loans/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// ServiceLoggers resolves the go-job bridges for a loans service using the
// service's own logger provider.
func ServiceLoggers(name string, svc *core.Service) (job.LoggerProvider, job.Logger) {
	var provider glog.LoggerProvider
	var logger glog.Logger
	if svc != nil {
		deps := svc.Dependencies()
		provider, logger = deps.LoggerProvider, deps.Logger
	}
	_, _, jobProvider, jobLogger := ResolveForJob(name, provider, logger)
	return jobProvider, jobLogger
}
