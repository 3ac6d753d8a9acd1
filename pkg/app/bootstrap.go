package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/papercomputeco/ctxmem/pkg/config"
	"github.com/papercomputeco/ctxmem/pkg/dotdir"
	"github.com/papercomputeco/ctxmem/pkg/logger"
)

// Bootstrap resolves the effective config from v and opens the App. Logs go
// to logOut, and also to log.file as JSON when it is set.
func Bootstrap(v *viper.Viper, configDir string, debug bool, logOut io.Writer) (*App, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	stateDir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}

	log := NewLogger(cfg.Log, debug, logOut)

	var logFile *os.File
	if cfg.Log.File != "" {
		logFile, err = openLogFile(stateDir, cfg.Log.File)
		if err != nil {
			return nil, err
		}
		log = logger.Multi(log, fileLogger(cfg.Log, debug, logFile))
	}

	a, err := Open(cfg, stateDir, log)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}
	if logFile != nil {
		a.logFile = logFile
	}
	return a, nil
}

func openLogFile(stateDir, path string) (*os.File, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(stateDir, path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func fileLogger(c config.LogConfig, debug bool, w io.Writer) *slog.Logger {
	return logger.New(
		logger.WithLevel(c.Level),
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(w),
	)
}
