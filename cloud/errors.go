package cloud

// FormatError reports malformed input rejected by one of the decoders. It is
// fatal for the decode attempt and is surfaced to the caller verbatim.
type FormatError struct {
	Format Format
	Reason string
}

func (e *FormatError) Error() string {
	return e.Format.String() + ": " + e.Reason
}
