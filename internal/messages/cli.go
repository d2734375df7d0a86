package messages

// CLI messages for user-facing commands and prompts.
const (
	// RootUse is the CLI command name.
	RootUse = "sw"
	// RootShort is the short description for the root command.
	RootShort       = "Stackwise framework installer"
	RootVersionFlag = "Print version and exit"

	VersionTemplate = "{{.Version}}\n"
	VersionFullFmt  = "%s (%s)"

	// InstallUse is the install command usage.
	InstallUse   = "install [component...]"
	InstallShort = "Install framework components into the target root"

	InstallFlagAtomic      = "Roll back every change when any component fails"
	InstallFlagAll         = "Install every available component"
	InstallFlagRecommended = "Install required and recommended components"
	InstallFlagMinimal     = "Install only required components"
	InstallFlagRoot        = "Target installation root (default ~/.stackwise)"
	InstallFlagDist        = "Distribution directory containing component manifests"
	InstallFlagJobs        = "Maximum number of components applied concurrently"

	InstallNothingSelected        = "no components selected; pass component ids or use --all, --recommended, or --minimal"
	InstallSelectionNeedsTerminal = "component selection requires an interactive terminal; pass component ids or --all/--recommended/--minimal"
	InstallSummaryHeaderFmt       = "Installed %d of %d components (run %s)\n"
	InstallComponentLineFmt       = "  %s %s %s\n"
	InstallResultFmt              = "Result: %s\n"

	// RollbackUse is the rollback command usage.
	RollbackUse        = "rollback <checkpoint-id>"
	RollbackShort      = "Restore files captured by a checkpoint"
	RollbackSuccessFmt = "Rolled back checkpoint %s\n"

	// CheckpointsUse is the checkpoints command usage.
	CheckpointsUse     = "checkpoints"
	CheckpointsShort   = "List retained checkpoints"
	CheckpointsNone    = "no checkpoints found"
	CheckpointsLineFmt = "%s  %s  %s  %s\n"

	// RecordUse is the record command usage.
	RecordUse          = "record [run-id]"
	RecordShort        = "Show a persisted installation record"
	RecordNoneFound    = "no installation records found"
	RecordHeaderFmt    = "Run %s  started %s  result %s\n"
	RecordComponentFmt = "  %-24s %-24s %s\n"

	// InterceptUse is the intercept command usage.
	InterceptUse   = "intercept"
	InterceptShort = "Route a tool invocation through the interception layer"

	InterceptFlagBackendCmd = "Fast backend launch command (argv; first element is the executable)"
	InterceptFlagTimeout    = "Per-call fast backend timeout"
	InterceptFlagThreshold  = "Consecutive failures before the circuit opens"
	InterceptFlagCooldown   = "Cooldown before an open circuit probes the backend again"
	InterceptReadRequestErr = "read tool request from stdin: %w"
	InterceptBadRequestFmt  = "decode tool request: %w"

	WizardSelectTitle   = "Select components to install"
	WizardConfirmFmt    = "Install %d components into %s?"
	WizardNeedsTerminal = "interactive selection requires a terminal"
	WizardAborted       = "installation cancelled"
)
