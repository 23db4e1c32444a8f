// Package logging constructs the single structured logger shared by the
// client and server daemons.
package logging

import (
	"go.uber.org/zap"
)

// New builds a *zap.SugaredLogger. Production builds use zap's default JSON
// production config; debug enables a human-readable development encoder
// with caller info, matching what you'd reach for while working on the
// daemon locally.
func New(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
