package logger

import "go.uber.org/zap"

// Component symbols used as a structured field (not embedded in the
// message), so logs stay queryable by symbol.
const (
	SymbolSSE      = "⇢" // SSE ingestion pipeline
	SymbolMapActor = "⬡" // per-map actor
	SymbolLicense  = "◈" // license validator
	SymbolConnMon  = "◎" // connection monitor
	SymbolDB       = "▤" // SQLite persistence layer
	SymbolServer   = "▣" // admin/introspection HTTP server
)

// WithSymbol returns a logger with the given symbol as a field.
//
// Example:
//
//	sseLogger := logger.WithSymbol(logger.SymbolSSE)
//	sseLogger.Infow("connected", "map_id", mapID)
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}

// SymbolInfow logs an info message tagged with a component symbol.
func SymbolInfow(symbol, msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}
