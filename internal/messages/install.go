package messages

// Installation orchestrator messages.
const (
	InstallRootRequired    = "installation root is required"
	InstallSystemRequired  = "installer requires a System implementation"
	InstallPolicyRequired  = "installer requires a policy checker"
	InstallStoreRequired   = "installer requires a record store"
	InstallNoComponents    = "no components requested"

	InstallAbortedFmt          = "installation aborted during %s phase: %v; %s"
	InstallAbortedComponentFmt = "installation aborted during %s phase (component %s): %v; %s"

	InstallFailedStatFmt         = "stat %s: %w"
	InstallFailedReadFmt         = "read %s: %w"
	InstallFailedWriteFmt        = "write %s: %w"
	InstallFailedCreateDirFmt    = "create directory %s: %w"
	InstallFailedCopyFmt         = "copy %s to %s: %w"
	InstallPostCopyFailedFmt     = "post-copy command %v: %w"
	InstallUnknownHandlerFmt     = "no registered handler named %q"
	InstallHandlerFailedFmt      = "handler %s: %w"

	InstallComponentFailedFmt    = "component %s failed: %v\n"
	InstallDependencySkippedFmt  = "component %s skipped: dependency %s unavailable\n"
	InstallRolledBackFmt         = "installation rolled back to checkpoint %s\n"
	InstallDiffHeaderFmt         = "component %s changes %s:\n"
	InstallRecordPersistFmt      = "persist installation record: %w"

	InstallRemediationPlan     = "fix the component dependency declarations and rerun"
	InstallRemediationValidate = "adjust the policy or the component manifest; no files were modified"
	InstallRemediationApplyFmt = "rerun with a narrower component set excluding %s"
	InstallRemediationCycleFmt = "fix circular dependency between %s"
)
