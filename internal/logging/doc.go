// Package logging provides structured logging for cortex on top of zap.
//
// # Overview
//
//   - Custom Trace level (-2, below Debug)
//   - stdout, stderr and OpenTelemetry outputs
//   - Context fields: trace_id, span_id, request.id, session.id
//   - Redaction of credentials and of journal content
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, session.ID)
//	logger.Info(ctx, "session appended", zap.String("core_tension", session.CoreTension))
//
// Services that take a *zap.Logger receive logger.Underlying().
//
// # Journal content
//
// Thoughts and reflections are private. With the default configuration any
// string field named text, thought, reflection, summary or note is logged
// as its length only:
//
//	{"msg":"thought submitted","text":"[CONTENT:182]"}
//
// Credentials (api_key, token, invite_code, ...) are replaced by [REDACTED].
package logging
