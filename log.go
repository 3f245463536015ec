package metaspace

import (
	"sync/atomic"

	log "github.com/bnclabs/golog"
)

var logok = int64(0)

// LogComponents enable logging. By default logging is disabled, call
// this with "metaspace", "self" or "all" to route chunk manager and
// arena events to golog.
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "metaspace", "self", "all":
			atomic.StoreInt64(&logok, 1)
		}
	}
}

func debugf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Debugf(format, v...)
	}
}

func infof(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Infof(format, v...)
	}
}

func warnf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Warnf(format, v...)
	}
}

func errorf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Errorf(format, v...)
	}
}
