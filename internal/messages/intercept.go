package messages

// Tool interceptor messages.
const (
	InterceptFastBackendRequired   = "interceptor requires a fast backend"
	InterceptNativeBackendRequired = "interceptor requires a native backend"
	InterceptToolRequired          = "tool request is missing a tool name"

	InterceptBackendFailedFmt  = "fast backend %s: %w"
	InterceptNativeFailedFmt   = "native path %s: %w"
	InterceptStateLoadFmt      = "load interceptor state for %s: %w"
	InterceptStateSaveFmt      = "save interceptor state for %s: %w"

	InterceptUnknownToolFmt   = "unknown tool %q"
	InterceptMissingArgFmt    = "tool %s requires argument %q"
	InterceptBackendSpawnFmt  = "connect fast backend %s: %w"
	InterceptEmptyResultFmt   = "fast backend returned no content for %s"
)
