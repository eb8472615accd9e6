// Package logx provides a small structured-logging facade over zerolog.
//
// Components receive a Logger tagged with a "comp" field via With(); the zero
// value and Nop() are safe no-op loggers for tests.
package logx
