package sealtype

// ProgressEvent represents a progress update during pack, verify, or unpack.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// BytesDone is the number of uncompressed body bytes processed so far.
	BytesDone uint64

	// BytesTotal is the total number of uncompressed body bytes.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// EntriesDone is the number of records processed.
	EntriesDone int

	// EntriesTotal is the total number of records.
	// Zero indicates the total is unknown (e.g., during walking).
	EntriesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for pack and unpack operations.
const (
	// StageWalking indicates the source tree is being enumerated.
	StageWalking ProgressStage = iota

	// StageSerializing indicates records are being serialized, compressed
	// and encrypted.
	StageSerializing

	// StageEmitting indicates the finished archive is being written out.
	StageEmitting

	// StageVerifying indicates the body is being decrypted, decompressed and
	// checked against the manifest digest.
	StageVerifying

	// StageMaterializing indicates entries are being written to disk.
	StageMaterializing
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageWalking:
		return "walking"
	case StageSerializing:
		return "serializing"
	case StageEmitting:
		return "emitting"
	case StageVerifying:
		return "verifying"
	case StageMaterializing:
		return "materializing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
