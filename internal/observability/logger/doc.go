// Package logger centraliza el logging estructurado de weauth sobre zap.
//
// Uso típico:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: "info", ServiceName: "weauth"})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("social.callback"))
//	log.Info("code exchanged", logger.Provider("wechat"))
//
// El logger viaja por el contexto (ToContext/From) para que los servicios
// hereden los campos del request (request_id, etc.) sin acoplarse al HTTP.
package logger
