package messages

// Installation record store messages.
const (
	RecordDirRequired    = "record store directory is required"
	RecordOpenFailedFmt  = "open record store at %s: %w"
	RecordPutFailedFmt   = "store record %s: %w"
	RecordGetFailedFmt   = "load record %s: %w"
	RecordNotFoundFmt    = "record %s not found"
	RecordNoLatest       = "no installation record has been persisted yet"
	RecordEncodeFmt      = "encode record %s: %w"
	RecordDecodeFmt      = "decode record %s: %w"
)
