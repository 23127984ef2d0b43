// Package logger is a standardized event logging framework for the shell.
//
// Every executed line becomes one entry in a newline delimited JSON log. The
// entries are protobuf Struct messages encoded with protojson so the log can
// be read back by anything that speaks the canonical protobuf JSON mapping.
package logger
