package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const logFileName = "kairos.log"

type Options struct {
	Enabled bool
	Level   string
	Path    string
	Output  io.Writer
}

// New builds the process logger. With a Path the console output is tee'd to
// {Path}/kairos.log; the returned closer releases that file.
func New(options Options) (zerolog.Logger, io.Closer, error) {
	if !options.Enabled {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}

	level := zerolog.InfoLevel
	if options.Level != "" {
		parsed, err := zerolog.ParseLevel(options.Level)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	output := options.Output
	if output == nil {
		output = os.Stderr
	}

	var writer io.Writer = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	var closer io.Closer = io.NopCloser(nil)

	if options.Path != "" {
		if err := os.MkdirAll(options.Path, 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
		}

		file, err := os.OpenFile(filepath.Join(options.Path, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}

		writer = zerolog.MultiLevelWriter(writer, file)
		closer = file
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
