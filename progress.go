package seal

import "github.com/meigma/seal/internal/sealtype"

// Re-export progress types.
type (
	// ProgressEvent represents a progress update during pack or unpack.
	ProgressEvent = sealtype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = sealtype.ProgressStage

	// ProgressFunc receives progress updates. It is called from the goroutine
	// running the operation.
	ProgressFunc = sealtype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageWalking indicates the source tree is being enumerated.
	StageWalking = sealtype.StageWalking

	// StageSerializing indicates entries are being serialized into the body.
	StageSerializing = sealtype.StageSerializing

	// StageEmitting indicates the finished archive is being written out.
	StageEmitting = sealtype.StageEmitting

	// StageVerifying indicates the body is being authenticated and checked.
	StageVerifying = sealtype.StageVerifying

	// StageMaterializing indicates entries are being written to the destination.
	StageMaterializing = sealtype.StageMaterializing
)

func emit(fn ProgressFunc, ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}
