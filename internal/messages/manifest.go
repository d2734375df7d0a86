package messages

// Manifest store messages.
const (
	ManifestDirRequired    = "manifest directory is required"
	ManifestSystemRequired = "manifest store requires a System implementation"

	ManifestFailedReadDirFmt  = "read manifest directory %s: %w"
	ManifestFailedReadFileFmt = "read manifest %s: %w"
	ManifestDecodeFailedFmt   = "decode manifest %s: %w"

	ManifestMissingID          = "component id is required"
	ManifestMissingVersionFmt  = "component %s: version is required"
	ManifestDuplicateIDFmt     = "component %s declared in both %s and %s"
	ManifestEmptyFileEntryFmt  = "component %s: file entry %d must set source and destination"
	ManifestAbsDestFmt         = "component %s: file entry %d destination must be relative to the install root"
	ManifestUnknownTargetFmt   = "component %s: unknown install target %q"
	ManifestNoTargetsFmt       = "component %s: at least one install target is required"
	ManifestSelfDependencyFmt  = "component %s depends on itself"
	ManifestUnresolvedDepFmt   = "component %s depends on %s, which no loaded manifest provides"
	ManifestModuleIncomplete   = "component %s: module declarations require name, path, and sha256"
	ManifestNoneLoadedFmt      = "no component manifests found under %s"
	ManifestUnknownRequestFmt  = "unknown component %q requested"
	ManifestLoadErrPrefix      = "manifest"
	ManifestRemediationBadData = "fix the component manifest and rerun"
)
