package dwbranch

import "go.uber.org/zap"

// nopLogger is shared by every engine constructor that receives a nil
// *zap.Logger. The core writes nothing but debug messages, and only
// when a host wires a real logger in.
var nopLogger = zap.NewNop()

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return nopLogger
	}
	return l
}
