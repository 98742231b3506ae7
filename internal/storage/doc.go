package storage

// Package storage provides the optional delivery audit log.
//
// It is an append-only operational record of delivery outcomes; it is not
// reminder persistence (a restart still loses all reminders).
