// Package logging builds the process logger: zap with a trace level,
// optional OpenTelemetry export through the otelzap bridge, key and
// pattern based redaction, and sampling below error level.
//
// Service packages take a *zap.Logger; the commands construct a Logger
// from config and pass Underlying() down:
//
//	logger, err := logging.NewLogger(&cfg.Logging, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	docs, err := documents.NewService(store, logger.Underlying())
//
// Context correlation fields (trace_id, user.id, request.id) are added by
// the context-aware methods:
//
//	ctx = logging.WithUserID(ctx, "alice")
//	logger.Info(ctx, "document removed", zap.String("source", src))
//
// Tests use NewTestLogger and its Assert helpers.
package logging
