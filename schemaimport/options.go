package schemaimport

// Options describes the inputs required to construct a Config instance.
type Options struct {
    // WorkingDir is the base directory used to resolve relative paths.
    WorkingDir string
    // TblsConfigPath is the path to .tbls.yml / tbls.yml resolved from CLI or defaults.
    TblsConfigPath string
	// SchemaJSONPath is the path to the tbls-generated schema.json file.
	SchemaJSONPath string
	// OutputDir is made absolute by ResolveConfig; nothing in this package writes to it.
	OutputDir string
	// Include patterns are copied into Config; Convert does not apply them.
	Include []string
	// Exclude patterns are copied into Config; Convert does not apply them.
	Exclude []string
	// IncludeViews, when non-nil, sets Config.IncludeViews (default true); Convert imports views regardless.
	IncludeViews *bool
	// IncludeIndexes, when non-nil, sets Config.IncludeIndexes (default true); Convert imports indexes regardless.
	IncludeIndexes *bool
	// SchemaAware, when non-nil, sets Config.SchemaAware (default true); nothing in this package reads it.
	SchemaAware *bool
    // DryRun is copied into Config; nothing in this package reads it.
    DryRun bool
    // Experimental is copied into Config; nothing in this package reads it.
    Experimental bool
    // Verbose toggles detailed logging.
    Verbose bool
    // Logger, when non-nil, is used for verbose logging.
    Logger func(format string, args ...any)
}
