package config

import "strings"

// Setting keys as they appear in config files and option maps.
const (
	KeyEnabled           = "enabled"
	KeyParentExpansion   = "parent_expansion"
	KeyChildrenExpansion = "children_expansion"
	KeyLoopLimit         = "loop_limit"
	KeyVerbose           = "verbose"
	KeyLogFile           = "log_file"
)

// optionAliases maps a folded key (lowercase, no separators) to its setting key.
// The long names are the keyword arguments older callers used.
var optionAliases = map[string]string{
	"enabled":                        KeyEnabled,
	"isenabled":                      KeyEnabled,
	"parentexpansion":                KeyParentExpansion,
	"parentexecutionplan":            KeyParentExpansion,
	"childrenexpansion":              KeyChildrenExpansion,
	"childrenexecutionplan":          KeyChildrenExpansion,
	"looplimit":                      KeyLoopLimit,
	"countlimitidentifyinfiniteloop": KeyLoopLimit,
	"verbose":                        KeyVerbose,
}

// CanonicalKey returns the setting key for an option name written in
// snake_case, camelCase or kebab-case. ok is false for unrecognized names.
func CanonicalKey(name string) (key string, ok bool) {
	key, ok = optionAliases[foldKey(name)]
	return key, ok
}

// NormalizeOptions returns options keyed by canonical setting keys, dropping
// every unrecognized key.
func NormalizeOptions(options map[string]any) map[string]any {
	out := make(map[string]any, len(options))
	for name, value := range options {
		if key, ok := CanonicalKey(name); ok {
			out[key] = value
		}
	}
	return out
}

func foldKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)
}
