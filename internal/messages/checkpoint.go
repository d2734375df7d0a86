package messages

// Checkpoint manager messages.
const (
	CheckpointRootRequired   = "checkpoint root is required"
	CheckpointSystemRequired = "checkpoint manager requires a System implementation"
	CheckpointIDRequired     = "checkpoint id is required"
	CheckpointIDInvalidFmt   = "checkpoint id %q must be a bare name"
	CheckpointNotFoundFmt    = "checkpoint %s not found under %s"
	CheckpointNotActiveFmt   = "checkpoint %s is %s and cannot be rolled back"

	CheckpointCreatedFmt    = "checkpoint %s created; roll back manually with 'sw rollback %s'\n"
	CheckpointRolledBackFmt = "checkpoint %s restored\n"

	CheckpointCaptureFailedFmt = "capture %s: %w"
	CheckpointRestoreFailedFmt = "restore %s: %w"
	CheckpointPersistFailedFmt = "persist checkpoint %s: %w"
	CheckpointDecodeFailedFmt  = "decode checkpoint %s: %w"
)
