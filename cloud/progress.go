package cloud

// ProgressFunc receives decode progress at a coarse fixed point cadence.
// total is the declared point count of the source; done is the number of
// points decoded so far. Implementations must be cheap; decoders call it
// from their hot loop, although only once per cadence interval.
type ProgressFunc func(done, total int)
