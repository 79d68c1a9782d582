package cli

import (
	"io"
	"os"
	"time"
)

// Store backends accepted by --store.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Options carries the flags shared by every command.
type Options struct {
	Debug     bool
	LogFormat string

	Store         string
	StoreDir      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ReportTTL     time.Duration
	LockRedis     bool
	LockTTL       time.Duration

	// ReportKey, when set, seals stored reports with AES-256-GCM (hex key).
	// ReportFallbackKeys are comma-separated older keys still accepted on read.
	ReportKey          string
	ReportFallbackKeys string

	// Simulate, when set, is a facts file seeding an in-memory host.
	Simulate string
	// Commands overrides how host commands are invoked (e.g. via sudo).
	Commands string
	Host     string

	Format string
	DryRun bool

	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

func (o Options) stderr() io.Writer {
	if o.Stderr == nil {
		return os.Stderr
	}
	return o.Stderr
}
