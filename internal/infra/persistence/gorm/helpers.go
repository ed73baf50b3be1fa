package gormpersistence

import "time"

func timeFromUnixNano(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
