package plugin

import "testing/fstest"

// testPlugin mirrors a small but complete plugin tree.
func testPlugin() fstest.MapFS {
	return fstest.MapFS{
		".claude-plugin/plugin.json": {Data: []byte(`{"name": "test-plugin", "version": "0.1.0", "author": {"name": "Jo"}}`)},
		"commands/test-command.md": {Data: []byte(`---
description: Run the test suite against a file
argument-hint: "[filename]"
allowed-tools: [Read]
---
Run tests for $ARGUMENTS.
`)},
		"commands/advanced/nested-command.md": {Data: []byte(`---
description: A nested command that only users can call
disable_model_invocation: true
allowed_tools: Read, Grep
---
Body.
`)},
		"skills/code-review/SKILL.md": {Data: []byte(`---
name: code-review
description: Use when the user asks to "review my code", "check this PR for bugs" or "look over the diff". It's meant for quick passes.
allowed-tools:
  - Read
  - Grep
---
# Code review
`)},
		"agents/deployer.md": {Data: []byte(`---
description: Triggers on "deploy the service to staging" and "roll back the release".
tools: Bash, Read
model: sonnet
---
You deploy things.
`)},
		"README.md": {Data: []byte("not a component")},
	}
}
