package messages

// Validator / policy messages.
const (
	PolicyFileRequired     = "policy file path is required"
	PolicyFailedReadFmt    = "read policy %s: %w"
	PolicyDecodeFailedFmt  = "decode policy %s: %w"
	PolicyNoRoots          = "policy must declare at least one allowed root"
	PolicyRootNotAbsFmt    = "policy allowed root %q must be absolute"
	PolicyCommandEmptyFmt  = "policy allowed command %d is empty"

	PolicyDenyPathNotAbsolute  = "path %q does not resolve to an absolute path"
	PolicyDenyPathTraversal    = "path %q contains a parent-directory traversal segment after canonicalization"
	PolicyDenyPathOutsideRoot  = "path %q resolves outside every allowed root"
	PolicyDenyCommandEmpty     = "command invocation has no argument vector"
	PolicyDenyCommandFmt       = "command %q is not on the allow-list"
	PolicyDenySignatureMissing = "module %q declares no signature; unsigned modules are rejected"
	PolicyDenySignatureFmt     = "module %q checksum %s does not match expected %s"

	PolicyDeniedFmt = "validation denied (%s): %s"
)
