package plugin

import "strings"

// ParseArgumentHint turns "[optional] <required>" into its argument names,
// in order. An empty hint yields an empty, non-nil slice.
func ParseArgumentHint(hint string) []string {
	args := []string{}
	for _, tok := range strings.Fields(hint) {
		name := strings.Trim(tok, "[]<>")
		if name != "" {
			args = append(args, name)
		}
	}
	return args
}

// GetCommandInvocation renders the slash command a user types:
// /{pluginPrefix}:{fullName}.
func GetCommandInvocation(cmd CommandComponent) string {
	return "/" + cmd.PluginPrefix + ":" + cmd.FullName
}

func commandFullName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}
