// Package logx provides a small structured logging layer on top of zerolog.
//
// It exposes a value-type Logger that stays live across Service.Apply()
// calls, so components keep their derived loggers while sinks and levels
// are reconfigured at runtime (console, file, telegram).
package logx
